package balance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// ManualStore is the repository slice the service writes through.
type ManualStore interface {
	UpsertManualVehicleOpening(ctx context.Context, o VehicleOpening) error
	InvalidateCarriedVehicleFrom(ctx context.Context, vehicleNo, month string) error
	ListVehicleOpenings(ctx context.Context, month string) ([]VehicleOpening, error)
	UpsertManualDealerOpening(ctx context.Context, o DealerOpening) error
	InvalidateCarriedDealerFrom(ctx context.Context, dealerKey, month string) error
	ListDealerOpenings(ctx context.Context, month string) ([]DealerOpening, error)
	UpsertManualMonetaryOpening(ctx context.Context, o MonetaryOpening) error
	InvalidateCarriedMonetaryFrom(ctx context.Context, dealerCode, month string) error
}

// Service records manual opening entries and answers opening queries through
// the carry-forward resolver.
type Service struct {
	store    ManualStore
	resolver *Resolver
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(store ManualStore, resolver *Resolver, logger *slog.Logger) *Service {
	return &Service{store: store, resolver: resolver, logger: logger}
}

// VehicleOpeningInput is an operator-entered vehicle opening.
type VehicleOpeningInput struct {
	VehicleNo       string  `json:"vehicle_no" validate:"required"`
	Month           string  `json:"month" validate:"required"`
	PPC             float64 `json:"ppc" validate:"gte=0"`
	Premium         float64 `json:"premium" validate:"gte=0"`
	OPC             float64 `json:"opc" validate:"gte=0"`
	DealerCode      string  `json:"dealer_code"`
	LastBillingDate string  `json:"last_billing_date"`
}

// DealerOpeningInput is an operator-entered dealer material opening. Negative
// quantities are allowed: a dealer can start a month over-delivered.
type DealerOpeningInput struct {
	DealerCode string  `json:"dealer_code"`
	DealerName string  `json:"dealer_name" validate:"required"`
	Month      string  `json:"month" validate:"required"`
	PPC        float64 `json:"ppc"`
	Premium    float64 `json:"premium"`
	OPC        float64 `json:"opc"`
}

// MonetaryOpeningInput is an operator-entered dealer money opening.
type MonetaryOpeningInput struct {
	DealerCode string  `json:"dealer_code" validate:"required"`
	DealerName string  `json:"dealer_name" validate:"required"`
	Month      string  `json:"month" validate:"required"`
	Amount     float64 `json:"amount"`
}

func checkMonth(month string) error {
	if _, err := shared.ParseMonth(month); err != nil {
		return fmt.Errorf("%w: %q", ErrMonthRequired, month)
	}
	back, err := shared.MonthsBack(month)
	if err != nil {
		return err
	}
	if back < 0 {
		return fmt.Errorf("%w: %s", shared.ErrBeforeEpoch, month)
	}
	return nil
}

// SetVehicleOpening stores a manual vehicle opening and discards every
// memoized month from it onward, since their values derived from the old one.
func (s *Service) SetVehicleOpening(ctx context.Context, in VehicleOpeningInput) (VehicleOpening, error) {
	if in.VehicleNo == "" {
		return VehicleOpening{}, ErrVehicleRequired
	}
	if err := checkMonth(in.Month); err != nil {
		return VehicleOpening{}, err
	}
	o := VehicleOpening{
		VehicleNo:  in.VehicleNo,
		Month:      in.Month,
		Qty:        product.Quantities{PPC: in.PPC, Premium: in.Premium, OPC: in.OPC},
		DealerCode: in.DealerCode,
		Source:     SourceManual,
		Complete:   true,
	}
	if in.LastBillingDate != "" {
		d, err := shared.ParseDate(in.LastBillingDate)
		if err != nil {
			return VehicleOpening{}, err
		}
		o.LastBillingDate = d
	}
	if err := s.store.InvalidateCarriedVehicleFrom(ctx, o.VehicleNo, o.Month); err != nil {
		return VehicleOpening{}, err
	}
	if err := s.store.UpsertManualVehicleOpening(ctx, o); err != nil {
		return VehicleOpening{}, err
	}
	s.logger.Info("manual vehicle opening set",
		slog.String("vehicle", o.VehicleNo), slog.String("month", o.Month))
	return o, nil
}

// VehicleOpening answers the opening for a vehicle and month.
func (s *Service) VehicleOpening(ctx context.Context, vehicleNo, month string) (VehicleOpening, error) {
	if err := checkMonth(month); err != nil {
		return VehicleOpening{}, err
	}
	return s.resolver.VehicleOpening(ctx, vehicleNo, month)
}

// ListVehicleOpenings lists stored vehicle openings for a month.
func (s *Service) ListVehicleOpenings(ctx context.Context, month string) ([]VehicleOpening, error) {
	if err := checkMonth(month); err != nil {
		return nil, err
	}
	return s.store.ListVehicleOpenings(ctx, month)
}

// SetDealerOpening stores a manual dealer material opening and invalidates
// memoized months from it onward.
func (s *Service) SetDealerOpening(ctx context.Context, in DealerOpeningInput) (DealerOpening, error) {
	if in.DealerCode == "" && in.DealerName == "" {
		return DealerOpening{}, ErrDealerRequired
	}
	if err := checkMonth(in.Month); err != nil {
		return DealerOpening{}, err
	}
	o := DealerOpening{
		DealerKey:  DealerKey(in.DealerCode, in.DealerName),
		DealerCode: in.DealerCode,
		DealerName: in.DealerName,
		IsOther:    in.DealerCode == "",
		Month:      in.Month,
		Qty:        product.Quantities{PPC: in.PPC, Premium: in.Premium, OPC: in.OPC},
		Source:     SourceManual,
		Complete:   true,
	}
	if err := s.store.InvalidateCarriedDealerFrom(ctx, o.DealerKey, o.Month); err != nil {
		return DealerOpening{}, err
	}
	if err := s.store.UpsertManualDealerOpening(ctx, o); err != nil {
		return DealerOpening{}, err
	}
	s.logger.Info("manual dealer opening set",
		slog.String("dealer", o.DealerKey), slog.String("month", o.Month))
	return o, nil
}

// DealerOpening answers the material opening for a dealer and month.
func (s *Service) DealerOpening(ctx context.Context, dealerCode, dealerName, month string) (DealerOpening, error) {
	if err := checkMonth(month); err != nil {
		return DealerOpening{}, err
	}
	key := DealerKey(dealerCode, dealerName)
	return s.resolver.DealerOpening(ctx, key, dealerName, dealerCode == "", month)
}

// ListDealerOpenings lists stored dealer openings for a month.
func (s *Service) ListDealerOpenings(ctx context.Context, month string) ([]DealerOpening, error) {
	if err := checkMonth(month); err != nil {
		return nil, err
	}
	return s.store.ListDealerOpenings(ctx, month)
}

// SetMonetaryOpening stores a manual monetary opening and invalidates
// memoized months from it onward.
func (s *Service) SetMonetaryOpening(ctx context.Context, in MonetaryOpeningInput) (MonetaryOpening, error) {
	if in.DealerCode == "" {
		return MonetaryOpening{}, ErrDealerRequired
	}
	if err := checkMonth(in.Month); err != nil {
		return MonetaryOpening{}, err
	}
	o := MonetaryOpening{
		DealerCode: in.DealerCode,
		DealerName: in.DealerName,
		Month:      in.Month,
		Amount:     in.Amount,
		Source:     SourceManual,
		Complete:   true,
	}
	if err := s.store.InvalidateCarriedMonetaryFrom(ctx, o.DealerCode, o.Month); err != nil {
		return MonetaryOpening{}, err
	}
	if err := s.store.UpsertManualMonetaryOpening(ctx, o); err != nil {
		return MonetaryOpening{}, err
	}
	s.logger.Info("manual monetary opening set",
		slog.String("dealer", o.DealerCode), slog.String("month", o.Month))
	return o, nil
}

// MonetaryOpening answers the money opening for a dealer and month.
func (s *Service) MonetaryOpening(ctx context.Context, dealerCode, dealerName, month string) (MonetaryOpening, error) {
	if err := checkMonth(month); err != nil {
		return MonetaryOpening{}, err
	}
	return s.resolver.MonetaryOpening(ctx, dealerCode, dealerName, month)
}

// DealerKey identifies a dealer across events: the dealer code when present,
// otherwise the trimmed name, which groups code-less rows the way the dealer
// report does.
func DealerKey(code, name string) string {
	if code != "" {
		return code
	}
	return strings.TrimSpace(name)
}
