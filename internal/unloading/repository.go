package unloading

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/platform/db"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Repository persists delivery events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, batch_id, vehicle_no, dealer_code, dealer_name, delivery_date,
ppc_qty, premium_qty, opc_qty, delivery_point, is_other_dealer, source, rule, created_at`

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var (
			e          Event
			dealerCode pgtype.Text
			point      pgtype.Text
			source     pgtype.Text
			rule       pgtype.Text
		)
		err := rows.Scan(&e.ID, &e.BatchID, &e.VehicleNo, &dealerCode, &e.DealerName, &e.Date,
			&e.Qty.PPC, &e.Qty.Premium, &e.Qty.OPC, &point, &e.IsOtherDealer, &source, &rule, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.DealerCode = dealerCode.String
		e.DeliveryPoint = point.String
		e.Source = billing.Source(source.String)
		e.Rule = Rule(rule.String)
		events = append(events, e)
	}
	return events, rows.Err()
}

// InsertBatch stores a batch of events and returns them with assigned IDs.
func (r *Repository) InsertBatch(ctx context.Context, events []Event) ([]Event, error) {
	out := make([]Event, 0, len(events))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, e := range events {
			row := tx.QueryRow(ctx, `INSERT INTO delivery_events
(batch_id, vehicle_no, dealer_code, dealer_name, delivery_date, ppc_qty, premium_qty, opc_qty, delivery_point, is_other_dealer, source, rule)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,NULLIF($9,''),$10,NULLIF($11,''),NULLIF($12,''))
RETURNING id, created_at`,
				e.BatchID, e.VehicleNo, e.DealerCode, e.DealerName, e.Date,
				e.Qty.PPC, e.Qty.Premium, e.Qty.OPC, e.DeliveryPoint, e.IsOtherDealer, string(e.Source), string(e.Rule))
			if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
				return fmt.Errorf("unloading: insert event: %w", err)
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

// Delete removes a delivery record. Future reconciliation runs simply no
// longer see it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM delivery_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("unloading: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateAssociation writes a resolved association back onto the event so
// subsequent runs are stable.
func (r *Repository) UpdateAssociation(ctx context.Context, id int64, assoc Association) error {
	_, err := r.pool.Exec(ctx, `UPDATE delivery_events
SET source = $2, rule = $3,
    dealer_code = COALESCE(NULLIF($4,''), dealer_code),
    dealer_name = CASE WHEN dealer_name = '' THEN $5 ELSE dealer_name END
WHERE id = $1`, id, string(assoc.Source), string(assoc.Rule), assoc.DealerCode, assoc.DealerName)
	if err != nil {
		return fmt.Errorf("unloading: update association: %w", err)
	}
	return nil
}

// ListByVehicleRange returns a vehicle's deliveries within [from, to] ordered
// by date then insertion sequence.
func (r *Repository) ListByVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM delivery_events
WHERE vehicle_no = $1 AND delivery_date BETWEEN $2 AND $3
ORDER BY delivery_date, id`, vehicleNo, from, to)
	if err != nil {
		return nil, fmt.Errorf("unloading: list by vehicle: %w", err)
	}
	return collectEvents(rows)
}

// ListForDealerDate returns a dealer's deliveries on one day, ordered by
// vehicle.
func (r *Repository) ListForDealerDate(ctx context.Context, dealerCode string, date time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM delivery_events
WHERE dealer_code = $1 AND delivery_date = $2
ORDER BY vehicle_no, id`, dealerCode, date)
	if err != nil {
		return nil, fmt.Errorf("unloading: list for dealer date: %w", err)
	}
	return collectEvents(rows)
}

// ListRange returns every delivery within [from, to].
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM delivery_events
WHERE delivery_date BETWEEN $1 AND $2
ORDER BY delivery_date, vehicle_no, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("unloading: list range: %w", err)
	}
	return collectEvents(rows)
}

// Get returns one delivery by id.
func (r *Repository) Get(ctx context.Context, id int64) (Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM delivery_events WHERE id = $1`, id)
	if err != nil {
		return Event{}, fmt.Errorf("unloading: get: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return Event{}, err
	}
	if len(events) == 0 {
		return Event{}, shared.ErrNotFound
	}
	return events[0], nil
}

// SumForVehicle totals everything delivered by a vehicle on or before date.
func (r *Repository) SumForVehicle(ctx context.Context, vehicleNo string, to time.Time) (product.Quantities, error) {
	var q product.Quantities
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM delivery_events WHERE vehicle_no = $1 AND delivery_date <= $2`, vehicleNo, to).
		Scan(&q.PPC, &q.Premium, &q.OPC)
	if err != nil {
		return product.Quantities{}, fmt.Errorf("unloading: sum for vehicle: %w", err)
	}
	return q, nil
}

// SumForVehicleRange totals deliveries for a vehicle within [from, to].
func (r *Repository) SumForVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) (product.Quantities, error) {
	var q product.Quantities
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM delivery_events WHERE vehicle_no = $1 AND delivery_date BETWEEN $2 AND $3`, vehicleNo, from, to).
		Scan(&q.PPC, &q.Premium, &q.OPC)
	if err != nil {
		return product.Quantities{}, fmt.Errorf("unloading: sum for vehicle range: %w", err)
	}
	return q, nil
}

// SumForDealerRange totals deliveries for one dealer key within [from, to].
func (r *Repository) SumForDealerRange(ctx context.Context, dealerKey string, isOther bool, from, to time.Time) (product.Quantities, error) {
	var (
		q   product.Quantities
		err error
	)
	if isOther {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM delivery_events WHERE (is_other_dealer OR dealer_code IS NULL) AND dealer_name = $1 AND delivery_date BETWEEN $2 AND $3`, dealerKey, from, to).
			Scan(&q.PPC, &q.Premium, &q.OPC)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM delivery_events WHERE dealer_code = $1 AND delivery_date BETWEEN $2 AND $3`, dealerKey, from, to).
			Scan(&q.PPC, &q.Premium, &q.OPC)
	}
	if err != nil {
		return product.Quantities{}, fmt.Errorf("unloading: sum for dealer range: %w", err)
	}
	return q, nil
}

// VehicleDaySums aggregates deliveries per vehicle for one day.
func (r *Repository) VehicleDaySums(ctx context.Context, date time.Time) ([]VehicleDaySum, error) {
	rows, err := r.pool.Query(ctx, `SELECT vehicle_no,
COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM delivery_events WHERE delivery_date = $1 GROUP BY vehicle_no`, date)
	if err != nil {
		return nil, fmt.Errorf("unloading: vehicle day sums: %w", err)
	}
	defer rows.Close()
	var sums []VehicleDaySum
	for rows.Next() {
		var s VehicleDaySum
		if err := rows.Scan(&s.VehicleNo, &s.Qty.PPC, &s.Qty.Premium, &s.Qty.OPC); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

// DealerRangeSums aggregates deliveries per dealer within [from, to].
func (r *Repository) DealerRangeSums(ctx context.Context, from, to time.Time) ([]DealerActivity, error) {
	rows, err := r.pool.Query(ctx, `SELECT
CASE WHEN is_other_dealer OR dealer_code IS NULL THEN dealer_name ELSE dealer_code END AS dealer_key,
COALESCE(MAX(dealer_code), ''), MAX(dealer_name), BOOL_OR(is_other_dealer OR dealer_code IS NULL),
COALESCE(SUM(ppc_qty),0), COALESCE(SUM(premium_qty),0), COALESCE(SUM(opc_qty),0)
FROM delivery_events WHERE delivery_date BETWEEN $1 AND $2 GROUP BY dealer_key`, from, to)
	if err != nil {
		return nil, fmt.Errorf("unloading: dealer range sums: %w", err)
	}
	defer rows.Close()
	var acts []DealerActivity
	for rows.Next() {
		var a DealerActivity
		if err := rows.Scan(&a.Key, &a.DealerCode, &a.DealerName, &a.IsOther,
			&a.Qty.PPC, &a.Qty.Premium, &a.Qty.OPC); err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// HasEventsInRange reports whether any delivery exists within [from, to].
func (r *Repository) HasEventsInRange(ctx context.Context, from, to time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM delivery_events WHERE delivery_date BETWEEN $1 AND $2)`, from, to).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("unloading: has events: %w", err)
	}
	return exists, nil
}
