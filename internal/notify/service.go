package notify

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/ledger"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

// BillingSource lists the invoices a message quotes. Satisfied by the billing
// repository.
type BillingSource interface {
	ListForDealerDate(ctx context.Context, dealerCode string, date time.Time) ([]billing.Event, error)
	DealerRangeSums(ctx context.Context, from, to time.Time) ([]billing.DealerActivity, error)
	SumForDealerRange(ctx context.Context, dealerKey string, isOther bool, from, to time.Time) (product.Quantities, error)
}

// DeliverySource lists a dealer's deliveries. Satisfied by the unloading
// repository.
type DeliverySource interface {
	ListForDealerDate(ctx context.Context, dealerCode string, date time.Time) ([]unloading.Event, error)
	SumForDealerRange(ctx context.Context, dealerKey string, isOther bool, from, to time.Time) (product.Quantities, error)
}

// OpeningSource answers dealer month openings. Satisfied by the balance
// service.
type OpeningSource interface {
	DealerOpening(ctx context.Context, dealerCode, dealerName, month string) (balance.DealerOpening, error)
}

// StatementSource answers a dealer's money position. Satisfied by the ledger
// service.
type StatementSource interface {
	Statement(ctx context.Context, dealerCode, dealerName, month string) (ledger.Statement, error)
}

// Service renders dealer messages from the event stream.
type Service struct {
	billings   BillingSource
	deliveries DeliverySource
	openings   OpeningSource
	statements StatementSource
	logger     *slog.Logger
}

// NewService builds Service.
func NewService(billings BillingSource, deliveries DeliverySource, openings OpeningSource, statements StatementSource, logger *slog.Logger) *Service {
	return &Service{billings: billings, deliveries: deliveries, openings: openings, statements: statements, logger: logger}
}

// BillingMessage renders the invoice message for one dealer and billing date.
func (s *Service) BillingMessage(ctx context.Context, dealerCode string, date time.Time) (BillingMessage, error) {
	invoices, err := s.billings.ListForDealerDate(ctx, dealerCode, date)
	if err != nil {
		return BillingMessage{}, err
	}
	if len(invoices) == 0 {
		return BillingMessage{}, shared.ErrNotFound
	}
	return RenderBilling(dealerCode, date, invoices), nil
}

// BillingMessagesForDate renders one message per dealer billed on the date,
// ordered by dealer name. Ad-hoc dealers have no number on file and are
// skipped.
func (s *Service) BillingMessagesForDate(ctx context.Context, date time.Time) ([]BillingMessage, error) {
	activity, err := s.billings.DealerRangeSums(ctx, date, date)
	if err != nil {
		return nil, err
	}
	var out []BillingMessage
	for _, a := range activity {
		if a.IsOther {
			continue
		}
		msg, err := s.BillingMessage(ctx, a.DealerCode, date)
		if err != nil {
			s.logger.Warn("billing message", slog.String("dealer", a.DealerCode), slog.Any("error", err))
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DealerName < out[j].DealerName })
	return out, nil
}

// UnloadingMessage renders the unloading-day summary for one dealer: that
// day's deliveries plus the material balance around them. The opening as of
// the day is the month's opening advanced by the month's activity up to the
// previous day.
func (s *Service) UnloadingMessage(ctx context.Context, dealerCode string, date time.Time) (UnloadingMessage, error) {
	deliveries, err := s.deliveries.ListForDealerDate(ctx, dealerCode, date)
	if err != nil {
		return UnloadingMessage{}, err
	}
	if len(deliveries) == 0 {
		return UnloadingMessage{}, shared.ErrNotFound
	}
	dealerName := deliveries[0].DealerName

	month := shared.MonthOf(date)
	monthOpening, err := s.openings.DealerOpening(ctx, dealerCode, dealerName, month)
	if err != nil {
		return UnloadingMessage{}, err
	}
	opening := monthOpening.Qty

	monthStart, err := shared.MonthStart(month)
	if err != nil {
		return UnloadingMessage{}, err
	}
	if date.After(monthStart) {
		prior := date.AddDate(0, 0, -1)
		billedPrior, err := s.billings.SumForDealerRange(ctx, dealerCode, false, monthStart, prior)
		if err != nil {
			return UnloadingMessage{}, err
		}
		deliveredPrior, err := s.deliveries.SumForDealerRange(ctx, dealerCode, false, monthStart, prior)
		if err != nil {
			return UnloadingMessage{}, err
		}
		opening = opening.Add(billedPrior).Sub(deliveredPrior)
	}

	billed, err := s.billings.SumForDealerRange(ctx, dealerCode, false, date, date)
	if err != nil {
		return UnloadingMessage{}, err
	}

	return RenderUnloading(dealerCode, dealerName, date, deliveries, opening, billed), nil
}

// PaymentReminder renders a reminder for one dealer, quoting the outstanding
// closing balance for the reminder date's month.
func (s *Service) PaymentReminder(ctx context.Context, dealerCode, dealerName string, reminderDate time.Time) (ReminderMessage, error) {
	st, err := s.statements.Statement(ctx, dealerCode, dealerName, shared.MonthOf(reminderDate))
	if err != nil {
		return ReminderMessage{}, err
	}
	return RenderReminder(dealerCode, st.DealerName, reminderDate, st.Closing), nil
}
