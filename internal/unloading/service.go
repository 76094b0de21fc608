package unloading

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertBatch(ctx context.Context, events []Event) ([]Event, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Event, error)
	UpdateAssociation(ctx context.Context, id int64, assoc Association) error
	ListByVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) ([]Event, error)
	SumForVehicle(ctx context.Context, vehicleNo string, to time.Time) (product.Quantities, error)
}

// BilledTotals supplies the billed-side totals the over-delivery check needs.
type BilledTotals interface {
	SumForVehicle(ctx context.Context, vehicleNo string, to time.Time) (product.Quantities, error)
}

// OpeningTotals supplies manually entered vehicle openings. Only manual rows
// count here: carried balances are derived from the same events and would
// double-count.
type OpeningTotals interface {
	ManualVehicleOpeningTotal(ctx context.Context, vehicleNo string) (product.Quantities, error)
}

// EventInput is one ingested delivery row.
type EventInput struct {
	VehicleNo     string  `json:"vehicle_no" validate:"required"`
	DealerCode    string  `json:"dealer_code"`
	DealerName    string  `json:"dealer_name"`
	Date          string  `json:"date" validate:"required"`
	PPC           float64 `json:"ppc" validate:"gte=0"`
	Premium       float64 `json:"premium" validate:"gte=0"`
	OPC           float64 `json:"opc" validate:"gte=0"`
	DeliveryPoint string  `json:"delivery_point"`
	IsOtherDealer bool    `json:"is_other_dealer"`
}

// Service coordinates delivery ingestion, association resolution and deletion.
type Service struct {
	repo     RepositoryPort
	billed   BilledTotals
	openings OpeningTotals
	resolver *Resolver
	logger   *slog.Logger
	onChange func(context.Context)
}

// NewService builds Service.
func NewService(repo RepositoryPort, billed BilledTotals, openings OpeningTotals, resolver *Resolver, logger *slog.Logger) *Service {
	return &Service{repo: repo, billed: billed, openings: openings, resolver: resolver, logger: logger}
}

// SetOnChange registers a callback invoked after successful writes. Used to
// bump derived-report caches.
func (s *Service) SetOnChange(fn func(context.Context)) {
	s.onChange = fn
}

// Ingest validates and stores a batch of delivery rows, then resolves missing
// dealer/source associations and writes them back so later runs are stable.
// Validation errors abort only the offending batch; resolution never does.
func (s *Service) Ingest(ctx context.Context, inputs []EventInput) ([]Event, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	batchID := uuid.NewString()
	events := make([]Event, 0, len(inputs))
	// Pending quantities per vehicle within this batch, so two rows for the
	// same vehicle are validated against their combined total.
	batchTotals := map[string]product.Quantities{}
	for i, in := range inputs {
		if in.VehicleNo == "" {
			return nil, fmt.Errorf("row %d: %w", i, ErrVehicleRequired)
		}
		if in.PPC < 0 || in.Premium < 0 || in.OPC < 0 {
			return nil, fmt.Errorf("row %d: %w", i, ErrNegativeQuantity)
		}
		date, err := shared.ParseDate(in.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		qty := product.Quantities{PPC: in.PPC, Premium: in.Premium, OPC: in.OPC}
		if err := s.checkAgainstBilled(ctx, in.VehicleNo, qty.Add(batchTotals[in.VehicleNo])); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		batchTotals[in.VehicleNo] = batchTotals[in.VehicleNo].Add(qty)
		events = append(events, Event{
			BatchID:       batchID,
			VehicleNo:     in.VehicleNo,
			DealerCode:    in.DealerCode,
			DealerName:    in.DealerName,
			Date:          date,
			Qty:           qty,
			DeliveryPoint: in.DeliveryPoint,
			IsOtherDealer: in.IsOtherDealer,
		})
	}

	stored, err := s.repo.InsertBatch(ctx, events)
	if err != nil {
		return nil, err
	}
	for i, e := range stored {
		assoc, err := s.resolver.Resolve(ctx, e)
		if err != nil {
			// Best effort: the event stays usable without an annotation.
			s.logger.Warn("resolve delivery association",
				slog.Int64("delivery_id", e.ID), slog.Any("error", err))
			continue
		}
		if err := s.repo.UpdateAssociation(ctx, e.ID, assoc); err != nil {
			s.logger.Warn("persist delivery association",
				slog.Int64("delivery_id", e.ID), slog.Any("error", err))
			continue
		}
		stored[i].Source = assoc.Source
		stored[i].Rule = assoc.Rule
		if stored[i].DealerCode == "" {
			stored[i].DealerCode = assoc.DealerCode
		}
		if stored[i].DealerName == "" {
			stored[i].DealerName = assoc.DealerName
		}
	}
	if s.onChange != nil {
		s.onChange(ctx)
	}
	return stored, nil
}

// checkAgainstBilled enforces the ingestion boundary: cumulative delivered
// plus the new quantity may not exceed manual openings plus everything ever
// billed, per product type, beyond Epsilon.
func (s *Service) checkAgainstBilled(ctx context.Context, vehicleNo string, newQty product.Quantities) error {
	// A generous horizon: "everything ever billed" has no upper date bound.
	horizon := time.Now().UTC().AddDate(10, 0, 0)
	billedTotal, err := s.billed.SumForVehicle(ctx, vehicleNo, horizon)
	if err != nil {
		return err
	}
	opening, err := s.openings.ManualVehicleOpeningTotal(ctx, vehicleNo)
	if err != nil {
		return err
	}
	delivered, err := s.repo.SumForVehicle(ctx, vehicleNo, horizon)
	if err != nil {
		return err
	}
	available := billedTotal.Add(opening)
	for _, t := range product.Types {
		if delivered.Get(t)+newQty.Get(t) > available.Get(t)+product.Epsilon {
			return fmt.Errorf("%w: vehicle %s %s delivered %.2f + new %.2f exceeds billed %.2f",
				ErrExceedsBilled, vehicleNo, t, delivered.Get(t), newQty.Get(t), available.Get(t))
		}
	}
	return nil
}

// Delete removes one delivery event.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.onChange != nil {
		s.onChange(ctx)
	}
	return nil
}

// ListVehicle returns a vehicle's deliveries in [from, to].
func (s *Service) ListVehicle(ctx context.Context, vehicleNo string, from, to time.Time) ([]Event, error) {
	if vehicleNo == "" {
		return nil, ErrVehicleRequired
	}
	return s.repo.ListByVehicleRange(ctx, vehicleNo, from, to)
}
