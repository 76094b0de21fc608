package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Repository persists opening balances in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetVehicleOpening returns the stored opening (manual or carried) for a
// vehicle and month.
func (r *Repository) GetVehicleOpening(ctx context.Context, vehicleNo, month string) (VehicleOpening, error) {
	var (
		o        VehicleOpening
		code     pgtype.Text
		lastBill pgtype.Date
	)
	err := r.pool.QueryRow(ctx, `SELECT id, vehicle_no, month, ppc_qty, premium_qty, opc_qty, dealer_code, last_billing_date, source, complete
FROM vehicle_openings WHERE vehicle_no = $1 AND month = $2`, vehicleNo, month).
		Scan(&o.ID, &o.VehicleNo, &o.Month, &o.Qty.PPC, &o.Qty.Premium, &o.Qty.OPC, &code, &lastBill, &o.Source, &o.Complete)
	if err != nil {
		if err == pgx.ErrNoRows {
			return VehicleOpening{}, shared.ErrNotFound
		}
		return VehicleOpening{}, fmt.Errorf("balance: get vehicle opening: %w", err)
	}
	o.DealerCode = code.String
	o.LastBillingDate = lastBill.Time
	return o, nil
}

// UpsertManualVehicleOpening stores an operator-entered vehicle opening,
// replacing whatever was there for the month.
func (r *Repository) UpsertManualVehicleOpening(ctx context.Context, o VehicleOpening) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO vehicle_openings
(vehicle_no, month, ppc_qty, premium_qty, opc_qty, dealer_code, last_billing_date, source, complete)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,'MANUAL',TRUE)
ON CONFLICT (vehicle_no, month) DO UPDATE SET
ppc_qty = EXCLUDED.ppc_qty, premium_qty = EXCLUDED.premium_qty, opc_qty = EXCLUDED.opc_qty,
dealer_code = EXCLUDED.dealer_code, last_billing_date = EXCLUDED.last_billing_date,
source = 'MANUAL', complete = TRUE`,
		o.VehicleNo, o.Month, o.Qty.PPC, o.Qty.Premium, o.Qty.OPC, o.DealerCode,
		pgtype.Date{Time: o.LastBillingDate, Valid: !o.LastBillingDate.IsZero()})
	if err != nil {
		return fmt.Errorf("balance: upsert manual vehicle opening: %w", err)
	}
	return nil
}

// InsertCarriedVehicleOpening memoizes a computed opening. Losing the insert
// race to a concurrent report request is fine: both writers computed the same
// value from the same events.
func (r *Repository) InsertCarriedVehicleOpening(ctx context.Context, o VehicleOpening) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO vehicle_openings
(vehicle_no, month, ppc_qty, premium_qty, opc_qty, dealer_code, last_billing_date, source, complete)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,'CARRIED',$8)`,
		o.VehicleNo, o.Month, o.Qty.PPC, o.Qty.Premium, o.Qty.OPC, o.DealerCode,
		pgtype.Date{Time: o.LastBillingDate, Valid: !o.LastBillingDate.IsZero()}, o.Complete)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("balance: insert carried vehicle opening: %w", err)
	}
	return nil
}

// InvalidateCarriedVehicleFrom removes memoized vehicle openings for month
// and everything after it. Called when a manual entry supersedes them.
func (r *Repository) InvalidateCarriedVehicleFrom(ctx context.Context, vehicleNo, month string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM vehicle_openings
WHERE vehicle_no = $1 AND month >= $2 AND source = 'CARRIED'`, vehicleNo, month)
	if err != nil {
		return fmt.Errorf("balance: invalidate carried vehicle: %w", err)
	}
	return nil
}

// ListVehicleOpenings returns all vehicle openings for a month.
func (r *Repository) ListVehicleOpenings(ctx context.Context, month string) ([]VehicleOpening, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, vehicle_no, month, ppc_qty, premium_qty, opc_qty, dealer_code, last_billing_date, source, complete
FROM vehicle_openings WHERE month = $1 ORDER BY vehicle_no`, month)
	if err != nil {
		return nil, fmt.Errorf("balance: list vehicle openings: %w", err)
	}
	defer rows.Close()
	var out []VehicleOpening
	for rows.Next() {
		var (
			o        VehicleOpening
			code     pgtype.Text
			lastBill pgtype.Date
		)
		if err := rows.Scan(&o.ID, &o.VehicleNo, &o.Month, &o.Qty.PPC, &o.Qty.Premium, &o.Qty.OPC, &code, &lastBill, &o.Source, &o.Complete); err != nil {
			return nil, err
		}
		o.DealerCode = code.String
		o.LastBillingDate = lastBill.Time
		out = append(out, o)
	}
	return out, rows.Err()
}

// ManualVehicleOpeningTotal sums a vehicle's operator-entered openings across
// all months. Used by the delivery over-run check, where carried rows would
// double-count billed events.
func (r *Repository) ManualVehicleOpeningTotal(ctx context.Context, vehicleNo string) (product.Quantities, error) {
	var q product.Quantities
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM vehicle_openings WHERE vehicle_no = $1 AND source = 'MANUAL'`, vehicleNo).
		Scan(&q.PPC, &q.Premium, &q.OPC)
	if err != nil {
		return product.Quantities{}, fmt.Errorf("balance: manual vehicle opening total: %w", err)
	}
	return q, nil
}

// GetDealerOpening returns the stored dealer material opening for a month.
func (r *Repository) GetDealerOpening(ctx context.Context, dealerKey, month string) (DealerOpening, error) {
	var (
		o    DealerOpening
		code pgtype.Text
	)
	err := r.pool.QueryRow(ctx, `SELECT id, dealer_key, dealer_code, dealer_name, is_other, month, ppc_qty, premium_qty, opc_qty, source, complete
FROM dealer_openings WHERE dealer_key = $1 AND month = $2`, dealerKey, month).
		Scan(&o.ID, &o.DealerKey, &code, &o.DealerName, &o.IsOther, &o.Month, &o.Qty.PPC, &o.Qty.Premium, &o.Qty.OPC, &o.Source, &o.Complete)
	if err != nil {
		if err == pgx.ErrNoRows {
			return DealerOpening{}, shared.ErrNotFound
		}
		return DealerOpening{}, fmt.Errorf("balance: get dealer opening: %w", err)
	}
	o.DealerCode = code.String
	return o, nil
}

// UpsertManualDealerOpening stores an operator-entered dealer opening.
func (r *Repository) UpsertManualDealerOpening(ctx context.Context, o DealerOpening) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO dealer_openings
(dealer_key, dealer_code, dealer_name, is_other, month, ppc_qty, premium_qty, opc_qty, source, complete)
VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7,$8,'MANUAL',TRUE)
ON CONFLICT (dealer_key, month) DO UPDATE SET
dealer_code = EXCLUDED.dealer_code, dealer_name = EXCLUDED.dealer_name, is_other = EXCLUDED.is_other,
ppc_qty = EXCLUDED.ppc_qty, premium_qty = EXCLUDED.premium_qty, opc_qty = EXCLUDED.opc_qty,
source = 'MANUAL', complete = TRUE`,
		o.DealerKey, o.DealerCode, o.DealerName, o.IsOther, o.Month, o.Qty.PPC, o.Qty.Premium, o.Qty.OPC)
	if err != nil {
		return fmt.Errorf("balance: upsert manual dealer opening: %w", err)
	}
	return nil
}

// InsertCarriedDealerOpening memoizes a computed dealer opening.
func (r *Repository) InsertCarriedDealerOpening(ctx context.Context, o DealerOpening) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO dealer_openings
(dealer_key, dealer_code, dealer_name, is_other, month, ppc_qty, premium_qty, opc_qty, source, complete)
VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7,$8,'CARRIED',$9)`,
		o.DealerKey, o.DealerCode, o.DealerName, o.IsOther, o.Month, o.Qty.PPC, o.Qty.Premium, o.Qty.OPC, o.Complete)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("balance: insert carried dealer opening: %w", err)
	}
	return nil
}

// InvalidateCarriedDealerFrom removes memoized dealer openings for month and after.
func (r *Repository) InvalidateCarriedDealerFrom(ctx context.Context, dealerKey, month string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM dealer_openings
WHERE dealer_key = $1 AND month >= $2 AND source = 'CARRIED'`, dealerKey, month)
	if err != nil {
		return fmt.Errorf("balance: invalidate carried dealer: %w", err)
	}
	return nil
}

// ListDealerOpenings returns all dealer openings for a month.
func (r *Repository) ListDealerOpenings(ctx context.Context, month string) ([]DealerOpening, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, dealer_key, dealer_code, dealer_name, is_other, month, ppc_qty, premium_qty, opc_qty, source, complete
FROM dealer_openings WHERE month = $1 ORDER BY dealer_name`, month)
	if err != nil {
		return nil, fmt.Errorf("balance: list dealer openings: %w", err)
	}
	defer rows.Close()
	var out []DealerOpening
	for rows.Next() {
		var (
			o    DealerOpening
			code pgtype.Text
		)
		if err := rows.Scan(&o.ID, &o.DealerKey, &code, &o.DealerName, &o.IsOther, &o.Month, &o.Qty.PPC, &o.Qty.Premium, &o.Qty.OPC, &o.Source, &o.Complete); err != nil {
			return nil, err
		}
		o.DealerCode = code.String
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetMonetaryOpening returns the stored monetary opening for a dealer month.
func (r *Repository) GetMonetaryOpening(ctx context.Context, dealerCode, month string) (MonetaryOpening, error) {
	var o MonetaryOpening
	err := r.pool.QueryRow(ctx, `SELECT id, dealer_code, dealer_name, month, amount, source, complete
FROM monetary_openings WHERE dealer_code = $1 AND month = $2`, dealerCode, month).
		Scan(&o.ID, &o.DealerCode, &o.DealerName, &o.Month, &o.Amount, &o.Source, &o.Complete)
	if err != nil {
		if err == pgx.ErrNoRows {
			return MonetaryOpening{}, shared.ErrNotFound
		}
		return MonetaryOpening{}, fmt.Errorf("balance: get monetary opening: %w", err)
	}
	return o, nil
}

// UpsertManualMonetaryOpening stores an operator-entered monetary opening.
func (r *Repository) UpsertManualMonetaryOpening(ctx context.Context, o MonetaryOpening) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO monetary_openings
(dealer_code, dealer_name, month, amount, source, complete)
VALUES ($1,$2,$3,$4,'MANUAL',TRUE)
ON CONFLICT (dealer_code, month) DO UPDATE SET
dealer_name = EXCLUDED.dealer_name, amount = EXCLUDED.amount, source = 'MANUAL', complete = TRUE`,
		o.DealerCode, o.DealerName, o.Month, o.Amount)
	if err != nil {
		return fmt.Errorf("balance: upsert manual monetary opening: %w", err)
	}
	return nil
}

// InsertCarriedMonetaryOpening memoizes a computed monetary opening.
func (r *Repository) InsertCarriedMonetaryOpening(ctx context.Context, o MonetaryOpening) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO monetary_openings
(dealer_code, dealer_name, month, amount, source, complete)
VALUES ($1,$2,$3,$4,'CARRIED',$5)`,
		o.DealerCode, o.DealerName, o.Month, o.Amount, o.Complete)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("balance: insert carried monetary opening: %w", err)
	}
	return nil
}

// InvalidateCarriedMonetaryFrom removes memoized monetary openings for month and after.
func (r *Repository) InvalidateCarriedMonetaryFrom(ctx context.Context, dealerCode, month string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM monetary_openings
WHERE dealer_code = $1 AND month >= $2 AND source = 'CARRIED'`, dealerCode, month)
	if err != nil {
		return fmt.Errorf("balance: invalidate carried monetary: %w", err)
	}
	return nil
}
