package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertBatch(ctx context.Context, events []Event) ([]Event, error)
	ListByVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) ([]Event, error)
	ListRange(ctx context.Context, from, to time.Time) ([]Event, error)
}

// EventInput is one ingested invoice row.
type EventInput struct {
	VehicleNo  string  `json:"vehicle_no" validate:"required"`
	DealerCode string  `json:"dealer_code"`
	DealerName string  `json:"dealer_name" validate:"required"`
	Date       string  `json:"date" validate:"required"`
	PPC        float64 `json:"ppc" validate:"gte=0"`
	Premium    float64 `json:"premium" validate:"gte=0"`
	OPC        float64 `json:"opc" validate:"gte=0"`
	TotalValue float64 `json:"total_value" validate:"gte=0"`
	Source     string  `json:"source" validate:"omitempty,oneof=PLANT DEPOT"`
	InvoiceNo  string  `json:"invoice_no"`
}

// Service coordinates billing ingestion and lookups.
type Service struct {
	repo     RepositoryPort
	onChange func(context.Context)
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// SetOnChange registers a callback invoked after successful writes. Used to
// bump derived-report caches.
func (s *Service) SetOnChange(fn func(context.Context)) {
	s.onChange = fn
}

// Ingest validates and stores a batch of invoice rows. The whole batch shares
// one uuid so a spreadsheet upload can be traced back as a unit.
func (s *Service) Ingest(ctx context.Context, inputs []EventInput) ([]Event, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	batchID := uuid.NewString()
	events := make([]Event, 0, len(inputs))
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
		source := Source(in.Source)
		if source == "" {
			source = SourcePlant
		}
		ledger := LedgerPrimary
		if in.DealerCode == "" {
			ledger = LedgerOther
		}
		events = append(events, Event{
			BatchID:    batchID,
			VehicleNo:  in.VehicleNo,
			DealerCode: in.DealerCode,
			DealerName: in.DealerName,
			Date:       date,
			Qty:        product.Quantities{PPC: in.PPC, Premium: in.Premium, OPC: in.OPC},
			TotalValue: in.TotalValue,
			Source:     source,
			Ledger:     ledger,
			InvoiceNo:  in.InvoiceNo,
		})
	}
	stored, err := s.repo.InsertBatch(ctx, events)
	if err != nil {
		return nil, err
	}
	if s.onChange != nil {
		s.onChange(ctx)
	}
	return stored, nil
}

// ListVehicle returns a vehicle's billing in [from, to].
func (s *Service) ListVehicle(ctx context.Context, vehicleNo string, from, to time.Time) ([]Event, error) {
	if vehicleNo == "" {
		return nil, ErrVehicleRequired
	}
	return s.repo.ListByVehicleRange(ctx, vehicleNo, from, to)
}

// ListRange returns all billing in [from, to].
func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	return s.repo.ListRange(ctx, from, to)
}
