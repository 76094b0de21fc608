package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cemtrack/cemtrack/internal/shared"
)

// Repository persists daily balances in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes one day balance, overwriting a prior run's row for the same
// (date, vehicle). Rebuilds recompute rather than double-apply.
func (r *Repository) Upsert(ctx context.Context, b DayBalance) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO day_balances
(balance_date, vehicle_no, ppc_qty, premium_qty, opc_qty, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (balance_date, vehicle_no) DO UPDATE SET
ppc_qty = EXCLUDED.ppc_qty, premium_qty = EXCLUDED.premium_qty, opc_qty = EXCLUDED.opc_qty,
updated_at = NOW()`,
		b.Date, b.VehicleNo, b.Qty.PPC, b.Qty.Premium, b.Qty.OPC)
	if err != nil {
		return fmt.Errorf("snapshot: upsert: %w", err)
	}
	return nil
}

// Delete removes the row for (date, vehicle), if any. Used when a rebuild
// finds the balance has dropped to nothing.
func (r *Repository) Delete(ctx context.Context, date time.Time, vehicleNo string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM day_balances WHERE balance_date = $1 AND vehicle_no = $2`, date, vehicleNo)
	if err != nil {
		return fmt.Errorf("snapshot: delete: %w", err)
	}
	return nil
}

// Get returns the balance for one vehicle on one day.
func (r *Repository) Get(ctx context.Context, date time.Time, vehicleNo string) (DayBalance, error) {
	var b DayBalance
	err := r.pool.QueryRow(ctx, `SELECT id, balance_date, vehicle_no, ppc_qty, premium_qty, opc_qty, updated_at
FROM day_balances WHERE balance_date = $1 AND vehicle_no = $2`, date, vehicleNo).
		Scan(&b.ID, &b.Date, &b.VehicleNo, &b.Qty.PPC, &b.Qty.Premium, &b.Qty.OPC, &b.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return DayBalance{}, shared.ErrNotFound
		}
		return DayBalance{}, fmt.Errorf("snapshot: get: %w", err)
	}
	return b, nil
}

// ListForDate returns every vehicle's balance on one day.
func (r *Repository) ListForDate(ctx context.Context, date time.Time) ([]DayBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, balance_date, vehicle_no, ppc_qty, premium_qty, opc_qty, updated_at
FROM day_balances WHERE balance_date = $1 ORDER BY vehicle_no`, date)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list for date: %w", err)
	}
	defer rows.Close()
	var out []DayBalance
	for rows.Next() {
		var b DayBalance
		if err := rows.Scan(&b.ID, &b.Date, &b.VehicleNo, &b.Qty.PPC, &b.Qty.Premium, &b.Qty.OPC, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LastDate returns the newest materialized date, or ok=false when the table
// is empty.
func (r *Repository) LastDate(ctx context.Context) (time.Time, bool, error) {
	var d pgtype.Date
	err := r.pool.QueryRow(ctx, `SELECT MAX(balance_date) FROM day_balances`).Scan(&d)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("snapshot: last date: %w", err)
	}
	if !d.Valid {
		return time.Time{}, false, nil
	}
	return d.Time, true, nil
}
