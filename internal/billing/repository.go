package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cemtrack/cemtrack/internal/platform/db"
	"github.com/cemtrack/cemtrack/internal/product"
)

// Repository persists billing events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, batch_id, vehicle_no, dealer_code, dealer_name, sale_date,
ppc_qty, premium_qty, opc_qty, total_value, source, ledger, invoice_no, created_at`

func scanEvent(row pgx.Row) (Event, error) {
	var (
		e          Event
		dealerCode pgtype.Text
		invoiceNo  pgtype.Text
	)
	err := row.Scan(&e.ID, &e.BatchID, &e.VehicleNo, &dealerCode, &e.DealerName, &e.Date,
		&e.Qty.PPC, &e.Qty.Premium, &e.Qty.OPC, &e.TotalValue, &e.Source, &e.Ledger,
		&invoiceNo, &e.CreatedAt)
	if err != nil {
		return Event{}, err
	}
	e.DealerCode = dealerCode.String
	e.InvoiceNo = invoiceNo.String
	return e, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// InsertBatch stores a batch of events and returns them with assigned IDs.
func (r *Repository) InsertBatch(ctx context.Context, events []Event) ([]Event, error) {
	out := make([]Event, 0, len(events))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, e := range events {
			row := tx.QueryRow(ctx, `INSERT INTO billing_events
(batch_id, vehicle_no, dealer_code, dealer_name, sale_date, ppc_qty, premium_qty, opc_qty, total_value, source, ledger, invoice_no)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''))
RETURNING id, created_at`,
				e.BatchID, e.VehicleNo, e.DealerCode, e.DealerName, e.Date,
				e.Qty.PPC, e.Qty.Premium, e.Qty.OPC, e.TotalValue, e.Source, e.Ledger, e.InvoiceNo)
			if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
				return fmt.Errorf("billing: insert event: %w", err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByVehicleRange returns a vehicle's events within [from, to] ordered by
// date then insertion sequence.
func (r *Repository) ListByVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM billing_events
WHERE vehicle_no = $1 AND sale_date BETWEEN $2 AND $3
ORDER BY sale_date, id`, vehicleNo, from, to)
	if err != nil {
		return nil, fmt.Errorf("billing: list by vehicle: %w", err)
	}
	return collectEvents(rows)
}

// ListRange returns every event within [from, to] ordered by date, vehicle,
// then insertion sequence.
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM billing_events
WHERE sale_date BETWEEN $1 AND $2
ORDER BY sale_date, vehicle_no, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("billing: list range: %w", err)
	}
	return collectEvents(rows)
}

// ListForDealerDate returns one dealer's events on one date, in insertion order.
func (r *Repository) ListForDealerDate(ctx context.Context, dealerCode string, date time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM billing_events
WHERE dealer_code = $1 AND sale_date = $2 ORDER BY id`, dealerCode, date)
	if err != nil {
		return nil, fmt.Errorf("billing: list for dealer date: %w", err)
	}
	return collectEvents(rows)
}

// SameDay returns a vehicle's events on one date.
func (r *Repository) SameDay(ctx context.Context, vehicleNo string, date time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM billing_events
WHERE vehicle_no = $1 AND sale_date = $2 ORDER BY id`, vehicleNo, date)
	if err != nil {
		return nil, fmt.Errorf("billing: same day: %w", err)
	}
	return collectEvents(rows)
}

// Window returns a vehicle's events within ±days of date, closest first with
// earlier dates breaking distance ties.
func (r *Repository) Window(ctx context.Context, vehicleNo string, date time.Time, days int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM billing_events
WHERE vehicle_no = $1 AND sale_date BETWEEN $2 AND $3
ORDER BY ABS(sale_date - $4::date), sale_date, id`,
		vehicleNo, date.AddDate(0, 0, -days), date.AddDate(0, 0, days), date)
	if err != nil {
		return nil, fmt.Errorf("billing: window: %w", err)
	}
	return collectEvents(rows)
}

// DistinctSources returns the set of sources a vehicle has ever been billed from.
func (r *Repository) DistinctSources(ctx context.Context, vehicleNo string) ([]Source, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT source FROM billing_events WHERE vehicle_no = $1`, vehicleNo)
	if err != nil {
		return nil, fmt.Errorf("billing: distinct sources: %w", err)
	}
	defer rows.Close()
	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// SumForVehicle totals everything billed to a vehicle on or before date.
func (r *Repository) SumForVehicle(ctx context.Context, vehicleNo string, to time.Time) (product.Quantities, error) {
	var q product.Quantities
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM billing_events WHERE vehicle_no = $1 AND sale_date <= $2`, vehicleNo, to).
		Scan(&q.PPC, &q.Premium, &q.OPC)
	if err != nil {
		return product.Quantities{}, fmt.Errorf("billing: sum for vehicle: %w", err)
	}
	return q, nil
}

// SumForVehicleRange totals billing for a vehicle within [from, to].
func (r *Repository) SumForVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) (product.Quantities, error) {
	var q product.Quantities
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM billing_events WHERE vehicle_no = $1 AND sale_date BETWEEN $2 AND $3`, vehicleNo, from, to).
		Scan(&q.PPC, &q.Premium, &q.OPC)
	if err != nil {
		return product.Quantities{}, fmt.Errorf("billing: sum for vehicle range: %w", err)
	}
	return q, nil
}

// SumForDealerRange totals billing for one dealer key within [from, to].
// Ad-hoc dealers are matched by name on the OTHER ledger, regular dealers by code.
func (r *Repository) SumForDealerRange(ctx context.Context, dealerKey string, isOther bool, from, to time.Time) (product.Quantities, error) {
	var (
		q   product.Quantities
		err error
	)
	if isOther {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM billing_events WHERE ledger = 'OTHER' AND dealer_name = $1 AND sale_date BETWEEN $2 AND $3`, dealerKey, from, to).
			Scan(&q.PPC, &q.Premium, &q.OPC)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM billing_events WHERE dealer_code = $1 AND sale_date BETWEEN $2 AND $3`, dealerKey, from, to).
			Scan(&q.PPC, &q.Premium, &q.OPC)
	}
	if err != nil {
		return product.Quantities{}, fmt.Errorf("billing: sum for dealer range: %w", err)
	}
	return q, nil
}

// VehicleDaySums aggregates billing per vehicle for one day.
func (r *Repository) VehicleDaySums(ctx context.Context, date time.Time) ([]VehicleDaySum, error) {
	rows, err := r.pool.Query(ctx, `SELECT vehicle_no, COALESCE(MAX(dealer_code), ''),
COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM billing_events WHERE sale_date = $1 GROUP BY vehicle_no`, date)
	if err != nil {
		return nil, fmt.Errorf("billing: vehicle day sums: %w", err)
	}
	defer rows.Close()
	var sums []VehicleDaySum
	for rows.Next() {
		var s VehicleDaySum
		if err := rows.Scan(&s.VehicleNo, &s.DealerCode, &s.Qty.PPC, &s.Qty.Premium, &s.Qty.OPC); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

const dealerActivitySelect = `SELECT
CASE WHEN ledger = 'OTHER' OR dealer_code IS NULL THEN dealer_name ELSE dealer_code END AS dealer_key,
COALESCE(MAX(dealer_code), ''), MAX(dealer_name),
BOOL_OR(ledger = 'OTHER' OR dealer_code IS NULL),
COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0),
COALESCE(SUM(total_value),0)
FROM billing_events`

func collectDealerActivity(rows pgx.Rows) ([]DealerActivity, error) {
	defer rows.Close()
	var acts []DealerActivity
	for rows.Next() {
		var a DealerActivity
		if err := rows.Scan(&a.Key, &a.DealerCode, &a.DealerName, &a.IsOther,
			&a.Qty.PPC, &a.Qty.Premium, &a.Qty.OPC, &a.TotalValue); err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// DealerRangeSums aggregates billing per dealer within [from, to].
func (r *Repository) DealerRangeSums(ctx context.Context, from, to time.Time) ([]DealerActivity, error) {
	rows, err := r.pool.Query(ctx, dealerActivitySelect+`
WHERE sale_date BETWEEN $1 AND $2 GROUP BY dealer_key`, from, to)
	if err != nil {
		return nil, fmt.Errorf("billing: dealer range sums: %w", err)
	}
	return collectDealerActivity(rows)
}

// SalesValueForDealerMonth totals the invoiced value for one dealer code in a month.
func (r *Repository) SalesValueForDealerMonth(ctx context.Context, dealerCode string, monthStart, monthEnd time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_value),0) FROM billing_events
WHERE dealer_code = $1 AND sale_date BETWEEN $2 AND $3`, dealerCode, monthStart, monthEnd).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("billing: sales value for dealer month: %w", err)
	}
	return total, nil
}

// HasEventsInRange reports whether any billing exists within [from, to]. Used
// by carry-forward to distinguish zero activity from missing data.
func (r *Repository) HasEventsInRange(ctx context.Context, from, to time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM billing_events WHERE sale_date BETWEEN $1 AND $2)`, from, to).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("billing: has events: %w", err)
	}
	return exists, nil
}

// DistinctVehicles returns every vehicle billed within [from, to].
func (r *Repository) DistinctVehicles(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT vehicle_no FROM billing_events
WHERE sale_date BETWEEN $1 AND $2 ORDER BY vehicle_no`, from, to)
	if err != nil {
		return nil, fmt.Errorf("billing: distinct vehicles: %w", err)
	}
	defer rows.Close()
	var vehicles []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// DealerNameByCode resolves a display name for a dealer code.
func (r *Repository) DealerNameByCode(ctx context.Context, dealerCode string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT dealer_name FROM billing_events WHERE dealer_code = $1 ORDER BY id LIMIT 1`, dealerCode).Scan(&name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("billing: dealer name: %w", err)
	}
	return name, nil
}
