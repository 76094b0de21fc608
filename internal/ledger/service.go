package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, c Collection) (Collection, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Collection, error)
	ListForDealerRange(ctx context.Context, dealerCode string, from, to time.Time) ([]Collection, error)
	CollectionsForDealerMonth(ctx context.Context, dealerCode string, from, to time.Time) (float64, error)
}

// SalesPort answers invoiced value per dealer and range. Satisfied by the
// billing repository.
type SalesPort interface {
	SalesValueForDealerMonth(ctx context.Context, dealerCode string, from, to time.Time) (float64, error)
}

// OpeningPort answers monetary openings. Satisfied by the balance resolver.
type OpeningPort interface {
	MonetaryOpening(ctx context.Context, dealerCode, dealerName, month string) (balance.MonetaryOpening, error)
}

// Invalidator discards memoized monetary openings made stale by a new or
// removed payment.
type Invalidator interface {
	InvalidateCarriedMonetaryFrom(ctx context.Context, dealerCode, month string) error
}

// Service records collections and assembles dealer statements.
type Service struct {
	repo        RepositoryPort
	sales       SalesPort
	openings    OpeningPort
	invalidator Invalidator
	logger      *slog.Logger
	onChange    func(context.Context)
}

// NewService builds Service.
func NewService(repo RepositoryPort, sales SalesPort, openings OpeningPort, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, sales: sales, openings: openings, invalidator: invalidator, logger: logger}
}

// SetOnChange registers a callback invoked after successful writes. Used to
// bump derived-report caches.
func (s *Service) SetOnChange(fn func(context.Context)) {
	s.onChange = fn
}

// CollectionInput is one payment to record.
type CollectionInput struct {
	DealerCode string  `json:"dealer_code" validate:"required"`
	DealerName string  `json:"dealer_name" validate:"required"`
	Date       string  `json:"date" validate:"required"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	Mode       string  `json:"mode" validate:"omitempty,oneof=CASH BANK ADJUSTMENT"`
	Reference  string  `json:"reference"`
}

// Record stores a payment. Memoized monetary balances for the months after
// the payment derived from the old totals, so they are discarded.
func (s *Service) Record(ctx context.Context, in CollectionInput) (Collection, error) {
	if in.DealerCode == "" {
		return Collection{}, ErrDealerRequired
	}
	if in.Amount <= 0 {
		return Collection{}, ErrNonPositiveAmount
	}
	mode := Mode(in.Mode)
	if mode == "" {
		mode = ModeCash
	}
	switch mode {
	case ModeCash, ModeBank, ModeAdjustment:
	default:
		return Collection{}, fmt.Errorf("%w: %q", ErrBadMode, in.Mode)
	}
	date, err := shared.ParseDate(in.Date)
	if err != nil {
		return Collection{}, err
	}
	c, err := s.repo.Insert(ctx, Collection{
		DealerCode: in.DealerCode,
		DealerName: in.DealerName,
		Date:       date,
		Amount:     in.Amount,
		Mode:       mode,
		Reference:  in.Reference,
	})
	if err != nil {
		return Collection{}, err
	}
	s.invalidateAfter(ctx, c.DealerCode, c.Date)
	if s.onChange != nil {
		s.onChange(ctx)
	}
	s.logger.Info("collection recorded",
		slog.String("dealer", c.DealerCode), slog.Float64("amount", c.Amount))
	return c, nil
}

// Remove deletes a payment and the memoized balances that counted it.
func (s *Service) Remove(ctx context.Context, id int64) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateAfter(ctx, c.DealerCode, c.Date)
	if s.onChange != nil {
		s.onChange(ctx)
	}
	return nil
}

// invalidateAfter drops carried monetary openings for the months following
// the payment's month. The payment's own month's opening predates it and
// stays valid.
func (s *Service) invalidateAfter(ctx context.Context, dealerCode string, date time.Time) {
	next, err := shared.NextMonth(shared.MonthOf(date))
	if err != nil {
		return
	}
	if err := s.invalidator.InvalidateCarriedMonetaryFrom(ctx, dealerCode, next); err != nil {
		s.logger.Warn("invalidate monetary openings",
			slog.String("dealer", dealerCode), slog.Any("error", err))
	}
}

// Statement assembles a dealer's money position for one month.
func (s *Service) Statement(ctx context.Context, dealerCode, dealerName, month string) (Statement, error) {
	if dealerCode == "" {
		return Statement{}, ErrDealerRequired
	}
	opening, err := s.openings.MonetaryOpening(ctx, dealerCode, dealerName, month)
	if err != nil {
		return Statement{}, err
	}
	from, err := shared.MonthStart(month)
	if err != nil {
		return Statement{}, err
	}
	to, err := shared.MonthEnd(month)
	if err != nil {
		return Statement{}, err
	}
	sales, err := s.sales.SalesValueForDealerMonth(ctx, dealerCode, from, to)
	if err != nil {
		return Statement{}, err
	}
	collections, err := s.repo.ListForDealerRange(ctx, dealerCode, from, to)
	if err != nil {
		return Statement{}, err
	}
	var collected float64
	for _, c := range collections {
		collected += c.Amount
	}
	name := opening.DealerName
	if name == "" {
		name = dealerName
	}
	return Statement{
		DealerCode:  dealerCode,
		DealerName:  name,
		Month:       month,
		Opening:     opening.Amount,
		Sales:       sales,
		Collected:   collected,
		Closing:     opening.Amount + sales - collected,
		Collections: collections,
		Complete:    opening.Complete,
	}, nil
}
