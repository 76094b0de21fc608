package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

// StorePort is the repository slice the builder writes through.
type StorePort interface {
	Upsert(ctx context.Context, b DayBalance) error
	Delete(ctx context.Context, date time.Time, vehicleNo string) error
	ListForDate(ctx context.Context, date time.Time) ([]DayBalance, error)
	LastDate(ctx context.Context) (time.Time, bool, error)
}

// BillingDays aggregates billing per vehicle for one day.
type BillingDays interface {
	VehicleDaySums(ctx context.Context, date time.Time) ([]billing.VehicleDaySum, error)
}

// DeliveryDays aggregates deliveries per vehicle for one day.
type DeliveryDays interface {
	VehicleDaySums(ctx context.Context, date time.Time) ([]unloading.VehicleDaySum, error)
}

// OpeningSeed supplies the stored openings that seed the epoch day's fold.
type OpeningSeed interface {
	ListVehicleOpenings(ctx context.Context, month string) ([]balance.VehicleOpening, error)
}

// Builder maintains the day_balances table as a left fold over the event
// stream: each day's balance is the previous day's plus that day's billing
// minus that day's deliveries, floored at zero per product type. Rows whose
// total is within Epsilon of zero are not kept; re-running a day overwrites
// instead of double-applying.
type Builder struct {
	store     StorePort
	billed    BillingDays
	delivered DeliveryDays
	seed      OpeningSeed
	logger    *slog.Logger
}

// NewBuilder constructs Builder.
func NewBuilder(store StorePort, billed BillingDays, delivered DeliveryDays, seed OpeningSeed, logger *slog.Logger) *Builder {
	return &Builder{store: store, billed: billed, delivered: delivered, seed: seed, logger: logger}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Rebuild folds the event stream forward through the given date. It resumes
// from the newest materialized day when one exists, otherwise starts at the
// epoch seeded with the stored epoch-month openings. The date axis is
// inherently sequential; vehicles within a day are independent.
func (b *Builder) Rebuild(ctx context.Context, through time.Time) error {
	through = dateOnly(through)
	if through.Before(shared.EpochDate) {
		return fmt.Errorf("%w: %s", ErrDateBeforeEpoch, through.Format(shared.DateLayout))
	}

	start := shared.EpochDate
	if last, ok, err := b.store.LastDate(ctx); err != nil {
		return err
	} else if ok && last.After(start) && !last.After(through) {
		// Recompute the newest day too: events may have landed since.
		start = dateOnly(last)
	}

	prev, err := b.previousBalances(ctx, start)
	if err != nil {
		return err
	}

	days := 0
	for d := start; !d.After(through); d = d.AddDate(0, 0, 1) {
		prev, err = b.rebuildDay(ctx, d, prev)
		if err != nil {
			return fmt.Errorf("snapshot: day %s: %w", d.Format(shared.DateLayout), err)
		}
		days++
	}
	b.logger.Info("snapshot rebuilt",
		slog.String("from", start.Format(shared.DateLayout)),
		slog.String("through", through.Format(shared.DateLayout)),
		slog.Int("days", days), slog.Int("vehicles", len(prev)))
	return nil
}

// previousBalances loads the fold's starting state: the day before start, or
// the epoch-month openings when starting from the epoch itself.
func (b *Builder) previousBalances(ctx context.Context, start time.Time) (map[string]product.Quantities, error) {
	prev := map[string]product.Quantities{}
	if start.Equal(shared.EpochDate) {
		openings, err := b.seed.ListVehicleOpenings(ctx, shared.Epoch)
		if err != nil {
			return nil, err
		}
		for _, o := range openings {
			prev[o.VehicleNo] = o.Qty.Clamp()
		}
		return prev, nil
	}
	rows, err := b.store.ListForDate(ctx, start.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		prev[r.VehicleNo] = r.Qty
	}
	return prev, nil
}

func (b *Builder) rebuildDay(ctx context.Context, date time.Time, prev map[string]product.Quantities) (map[string]product.Quantities, error) {
	billedSums, err := b.billed.VehicleDaySums(ctx, date)
	if err != nil {
		return nil, err
	}
	deliveredSums, err := b.delivered.VehicleDaySums(ctx, date)
	if err != nil {
		return nil, err
	}

	billed := map[string]product.Quantities{}
	for _, s := range billedSums {
		billed[s.VehicleNo] = billed[s.VehicleNo].Add(s.Qty)
	}
	delivered := map[string]product.Quantities{}
	for _, s := range deliveredSums {
		delivered[s.VehicleNo] = delivered[s.VehicleNo].Add(s.Qty)
	}

	vehicles := map[string]bool{}
	for v := range prev {
		vehicles[v] = true
	}
	for v := range billed {
		vehicles[v] = true
	}
	for v := range delivered {
		vehicles[v] = true
	}

	next := make(map[string]product.Quantities, len(vehicles))
	for v := range vehicles {
		q := prev[v].Add(billed[v]).Sub(delivered[v]).Clamp()
		if q.Total() <= product.Epsilon {
			if err := b.store.Delete(ctx, date, v); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.store.Upsert(ctx, DayBalance{Date: date, VehicleNo: v, Qty: q}); err != nil {
			return nil, err
		}
		next[v] = q
	}
	return next, nil
}
