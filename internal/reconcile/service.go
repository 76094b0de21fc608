package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

// fanOut caps concurrent per-vehicle reconciliations in the fleet sweep.
const fanOut = 8

// BillingSource lists billing events for the reconciliation window.
type BillingSource interface {
	ListByVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) ([]billing.Event, error)
	DistinctVehicles(ctx context.Context, from, to time.Time) ([]string, error)
}

// DeliverySource lists delivery events for the reconciliation window.
type DeliverySource interface {
	ListByVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) ([]unloading.Event, error)
}

// OpeningSource answers vehicle openings. Satisfied by the balance resolver.
type OpeningSource interface {
	VehicleOpening(ctx context.Context, vehicleNo, month string) (balance.VehicleOpening, error)
}

// Service assembles reconciliation reports by joining openings with the
// month's events and running the lot engine over them.
type Service struct {
	billings   BillingSource
	deliveries DeliverySource
	openings   OpeningSource
	logger     *slog.Logger
}

// NewService builds Service.
func NewService(billings BillingSource, deliveries DeliverySource, openings OpeningSource, logger *slog.Logger) *Service {
	return &Service{billings: billings, deliveries: deliveries, openings: openings, logger: logger}
}

// Report is one vehicle's reconciliation as of a date.
type Report struct {
	Result
	AsOf    time.Time          `json:"as_of"`
	Month   string             `json:"month"`
	Opening product.Quantities `json:"opening"`
	// Complete mirrors the opening's flag: false means the opening rests on
	// months with no recorded data.
	Complete bool `json:"complete"`
}

// VehicleReport reconciles one vehicle as of date. The window is the
// vehicle's opening for the date's month plus every event from the month
// start through the date.
func (s *Service) VehicleReport(ctx context.Context, vehicleNo string, date time.Time) (Report, error) {
	month := shared.MonthOf(date)
	opening, err := s.openings.VehicleOpening(ctx, vehicleNo, month)
	if err != nil {
		return Report{}, err
	}
	from, err := shared.MonthStart(month)
	if err != nil {
		return Report{}, err
	}
	billings, err := s.billings.ListByVehicleRange(ctx, vehicleNo, from, date)
	if err != nil {
		return Report{}, err
	}
	deliveries, err := s.deliveries.ListByVehicleRange(ctx, vehicleNo, from, date)
	if err != nil {
		return Report{}, err
	}

	var op *Opening
	if !opening.Qty.IsZero() {
		billDate := opening.LastBillingDate
		if billDate.IsZero() {
			billDate = from
		}
		op = &Opening{
			Qty:         opening.Qty,
			BillingDate: billDate,
			DealerCode:  opening.DealerCode,
		}
	}
	res := Reconcile(vehicleNo, op, billings, deliveries)
	return Report{
		Result:   res,
		AsOf:     date,
		Month:    month,
		Opening:  opening.Qty,
		Complete: opening.Complete,
	}, nil
}

// Balance returns the outstanding quantity still owed by a vehicle as of
// date. Used where only the number matters, like the snapshot fallback.
func (s *Service) Balance(ctx context.Context, vehicleNo string, date time.Time) (product.Quantities, error) {
	rep, err := s.VehicleReport(ctx, vehicleNo, date)
	if err != nil {
		return product.Quantities{}, err
	}
	return rep.Pending, nil
}

// PendingVehicles reconciles every vehicle billed since the epoch and returns
// those still holding material as of date, sorted by vehicle number. Each
// vehicle is independent, so the sweep fans out.
func (s *Service) PendingVehicles(ctx context.Context, date time.Time) ([]Report, error) {
	vehicles, err := s.billings.DistinctVehicles(ctx, shared.EpochDate, date)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		reports []Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for _, v := range vehicles {
		v := v
		g.Go(func() error {
			rep, err := s.VehicleReport(gctx, v, date)
			if err != nil {
				return err
			}
			if rep.Pending.Total() <= product.Epsilon {
				return nil
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].VehicleNo < reports[j].VehicleNo
	})
	s.logger.Debug("pending vehicle sweep",
		slog.Int("vehicles", len(vehicles)), slog.Int("pending", len(reports)))
	return reports, nil
}
