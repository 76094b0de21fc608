// Package report assembles the operator-facing views: the per-dealer balance
// report and the pending-vehicle list, with Redis caching in front of both.
package report

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/reconcile"
	"github.com/cemtrack/cemtrack/internal/shared"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

// OtherDealersName labels the synthetic bucket collapsing every ad-hoc dealer.
// Such dealers have no durable identity across months, so listing them
// individually would produce rows that cannot be tracked period to period.
const OtherDealersName = "Other Dealers (Cumulative)"

// BillingActivity aggregates billing per dealer. Satisfied by the billing
// repository.
type BillingActivity interface {
	DealerRangeSums(ctx context.Context, from, to time.Time) ([]billing.DealerActivity, error)
}

// DeliveryActivity aggregates deliveries per dealer. Satisfied by the
// unloading repository.
type DeliveryActivity interface {
	DealerRangeSums(ctx context.Context, from, to time.Time) ([]unloading.DealerActivity, error)
}

// OpeningSource answers dealer openings and lists the stored ones, so dealers
// holding a balance with zero activity still appear. Satisfied by the balance
// service.
type OpeningSource interface {
	DealerOpening(ctx context.Context, dealerCode, dealerName, month string) (balance.DealerOpening, error)
	ListDealerOpenings(ctx context.Context, month string) ([]balance.DealerOpening, error)
}

// PendingSource sweeps the fleet for vehicles still holding material.
// Satisfied by the reconcile service.
type PendingSource interface {
	PendingVehicles(ctx context.Context, date time.Time) ([]reconcile.Report, error)
}

// Service builds the reports.
type Service struct {
	billed    BillingActivity
	delivered DeliveryActivity
	openings  OpeningSource
	pending   PendingSource
	cache     *Cache
	logger    *slog.Logger
}

// NewService builds Service. cache may be nil.
func NewService(billed BillingActivity, delivered DeliveryActivity, openings OpeningSource, pending PendingSource, cache *Cache, logger *slog.Logger) *Service {
	return &Service{billed: billed, delivered: delivered, openings: openings, pending: pending, cache: cache, logger: logger}
}

// Row is one dealer's position in the report period.
type Row struct {
	DealerCode string             `json:"dealer_code,omitempty"`
	DealerName string             `json:"dealer_name"`
	IsOther    bool               `json:"is_other,omitempty"`
	Opening    product.Quantities `json:"opening"`
	Billed     product.Quantities `json:"billed"`
	Delivered  product.Quantities `json:"delivered"`
	Closing    product.Quantities `json:"closing"`
	SalesValue float64            `json:"sales_value,omitempty"`
	Complete   bool               `json:"complete"`
}

// DealerBalanceReport is the full per-dealer view for one period.
type DealerBalanceReport struct {
	Month string    `json:"month"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Rows  []Row     `json:"rows"`
	Total Row       `json:"total"`
}

// InvalidateCache drops every cached report. Hooked to event ingestion.
func (s *Service) InvalidateCache(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump report cache", slog.Any("error", err))
	}
}

// DealerBalance builds the dealer report for the month of date, with activity
// counted from the month start through date.
func (s *Service) DealerBalance(ctx context.Context, date time.Time) (DealerBalanceReport, error) {
	month := shared.MonthOf(date)
	key, err := s.cache.BuildKey(ctx, "report", "dealer", month, date.Format(shared.DateLayout))
	if err != nil {
		return DealerBalanceReport{}, err
	}
	var rep DealerBalanceReport
	err = s.cache.FetchJSON(ctx, key, &rep, func(ctx context.Context) (interface{}, error) {
		return s.buildDealerBalance(ctx, month, date)
	})
	return rep, err
}

func (s *Service) buildDealerBalance(ctx context.Context, month string, date time.Time) (DealerBalanceReport, error) {
	from, err := shared.MonthStart(month)
	if err != nil {
		return DealerBalanceReport{}, err
	}
	billed, err := s.billed.DealerRangeSums(ctx, from, date)
	if err != nil {
		return DealerBalanceReport{}, err
	}
	delivered, err := s.delivered.DealerRangeSums(ctx, from, date)
	if err != nil {
		return DealerBalanceReport{}, err
	}
	stored, err := s.openings.ListDealerOpenings(ctx, month)
	if err != nil {
		return DealerBalanceReport{}, err
	}

	// One working row per dealer key; ad-hoc dealers keep their own key here
	// so each one's opening resolves correctly, and collapse at the end.
	type entry struct {
		row     Row
		key     string
		isOther bool
	}
	entries := map[string]*entry{}
	ensure := func(key, code, name string, isOther bool) *entry {
		e, ok := entries[key]
		if !ok {
			e = &entry{key: key, isOther: isOther, row: Row{DealerCode: code, DealerName: name, IsOther: isOther}}
			entries[key] = e
		}
		if e.row.DealerName == "" {
			e.row.DealerName = name
		}
		return e
	}
	for _, a := range billed {
		e := ensure(a.Key, a.DealerCode, a.DealerName, a.IsOther)
		e.row.Billed = e.row.Billed.Add(a.Qty)
		e.row.SalesValue += a.TotalValue
	}
	for _, a := range delivered {
		e := ensure(a.Key, a.DealerCode, a.DealerName, a.IsOther)
		e.row.Delivered = e.row.Delivered.Add(a.Qty)
	}
	for _, o := range stored {
		ensure(o.DealerKey, o.DealerCode, o.DealerName, o.IsOther)
	}

	var rows []Row
	other := Row{DealerName: OtherDealersName, IsOther: true, Complete: true}
	var haveOther bool
	for _, e := range entries {
		opening, err := s.openings.DealerOpening(ctx, e.row.DealerCode, e.row.DealerName, month)
		if err != nil {
			return DealerBalanceReport{}, err
		}
		e.row.Opening = opening.Qty
		e.row.Closing = e.row.Opening.Add(e.row.Billed).Sub(e.row.Delivered)
		e.row.Complete = opening.Complete

		hasActivity := !e.row.Billed.IsZero() || !e.row.Delivered.IsZero()
		if !hasActivity && e.row.Closing.IsZero() {
			continue
		}
		if e.isOther {
			other.Opening = other.Opening.Add(e.row.Opening)
			other.Billed = other.Billed.Add(e.row.Billed)
			other.Delivered = other.Delivered.Add(e.row.Delivered)
			other.Closing = other.Closing.Add(e.row.Closing)
			other.SalesValue += e.row.SalesValue
			other.Complete = other.Complete && e.row.Complete
			haveOther = true
			continue
		}
		rows = append(rows, e.row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DealerName < rows[j].DealerName })
	if haveOther {
		rows = append(rows, other)
	}

	rep := DealerBalanceReport{Month: month, From: from, To: date, Rows: rows}
	rep.Total.DealerName = "Total"
	rep.Total.Complete = true
	for _, row := range rows {
		rep.Total.Opening = rep.Total.Opening.Add(row.Opening)
		rep.Total.Billed = rep.Total.Billed.Add(row.Billed)
		rep.Total.Delivered = rep.Total.Delivered.Add(row.Delivered)
		rep.Total.Closing = rep.Total.Closing.Add(row.Closing)
		rep.Total.SalesValue += row.SalesValue
		rep.Total.Complete = rep.Total.Complete && row.Complete
	}
	return rep, nil
}

// PendingVehicles returns the fleet's still-loaded vehicles as of date,
// cached under the same version as the dealer report.
func (s *Service) PendingVehicles(ctx context.Context, date time.Time) ([]reconcile.Report, error) {
	key, err := s.cache.BuildKey(ctx, "report", "pending", date.Format(shared.DateLayout))
	if err != nil {
		return nil, err
	}
	var reports []reconcile.Report
	err = s.cache.FetchJSON(ctx, key, &reports, func(ctx context.Context) (interface{}, error) {
		return s.pending.PendingVehicles(ctx, date)
	})
	return reports, err
}
