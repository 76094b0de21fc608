package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// VehicleActivity sums one vehicle's events over a date range. Satisfied by
// both the billing and unloading repositories.
type VehicleActivity interface {
	SumForVehicleRange(ctx context.Context, vehicleNo string, from, to time.Time) (product.Quantities, error)
}

// DealerActivity sums one dealer's events over a date range.
type DealerActivity interface {
	SumForDealerRange(ctx context.Context, dealerKey string, isOther bool, from, to time.Time) (product.Quantities, error)
}

// Presence reports whether any events at all exist in a range. Used to
// distinguish "zero activity" from "no data available".
type Presence interface {
	HasEventsInRange(ctx context.Context, from, to time.Time) (bool, error)
}

// MonetarySales sums invoiced value for a dealer over a range.
type MonetarySales interface {
	SalesValueForDealerMonth(ctx context.Context, dealerCode string, from, to time.Time) (float64, error)
}

// MonetaryCollections sums payments received from a dealer over a range.
type MonetaryCollections interface {
	CollectionsForDealerMonth(ctx context.Context, dealerCode string, from, to time.Time) (float64, error)
}

// StorePort is the slice of the repository the resolver reads and memoizes
// through.
type StorePort interface {
	GetVehicleOpening(ctx context.Context, vehicleNo, month string) (VehicleOpening, error)
	InsertCarriedVehicleOpening(ctx context.Context, o VehicleOpening) error
	GetDealerOpening(ctx context.Context, dealerKey, month string) (DealerOpening, error)
	InsertCarriedDealerOpening(ctx context.Context, o DealerOpening) error
	GetMonetaryOpening(ctx context.Context, dealerCode, month string) (MonetaryOpening, error)
	InsertCarriedMonetaryOpening(ctx context.Context, o MonetaryOpening) error
}

// Resolver derives a month's opening balance from the previous month's
// closing when no manual entry exists. Each computed month is memoized back
// into the store, so repeated queries are O(1) amortized instead of
// re-walking the whole history.
type Resolver struct {
	store            StorePort
	billedVehicle    VehicleActivity
	deliveredVehicle VehicleActivity
	billedDealer     DealerActivity
	deliveredDealer  DealerActivity
	sales            MonetarySales
	collections      MonetaryCollections
	billingPresence  Presence
	deliveryPresence Presence
	logger           *slog.Logger
}

// ResolverConfig groups the resolver's collaborators.
type ResolverConfig struct {
	Store            StorePort
	BilledVehicle    VehicleActivity
	DeliveredVehicle VehicleActivity
	BilledDealer     DealerActivity
	DeliveredDealer  DealerActivity
	Sales            MonetarySales
	Collections      MonetaryCollections
	BillingPresence  Presence
	DeliveryPresence Presence
	Logger           *slog.Logger
}

// NewResolver builds Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{
		store:            cfg.Store,
		billedVehicle:    cfg.BilledVehicle,
		deliveredVehicle: cfg.DeliveredVehicle,
		billedDealer:     cfg.BilledDealer,
		deliveredDealer:  cfg.DeliveredDealer,
		sales:            cfg.Sales,
		collections:      cfg.Collections,
		billingPresence:  cfg.BillingPresence,
		deliveryPresence: cfg.DeliveryPresence,
		logger:           cfg.Logger,
	}
}

// walkBack collects the months that need computing, newest first, until a
// stored entry or the epoch terminates the chain. lookup returns the stored
// opening for a month or shared.ErrNotFound.
func walkBack(month string, lookup func(string) (bool, error)) (chain []string, baseMonth string, err error) {
	back, err := shared.MonthsBack(month)
	if err != nil {
		return nil, "", err
	}
	if back < 0 {
		return nil, "", fmt.Errorf("%w: %s", shared.ErrBeforeEpoch, month)
	}
	cur := month
	for {
		found, err := lookup(cur)
		if err != nil {
			return nil, "", err
		}
		if found || cur == shared.Epoch {
			return chain, cur, nil
		}
		chain = append(chain, cur)
		cur, err = shared.PrevMonth(cur)
		if err != nil {
			return nil, "", err
		}
	}
}

func monthBounds(month string) (time.Time, time.Time, error) {
	from, err := shared.MonthStart(month)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := shared.MonthEnd(month)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// monthHasData reports whether any billing or delivery exists in the month.
func (r *Resolver) monthHasData(ctx context.Context, month string) bool {
	from, to, err := monthBounds(month)
	if err != nil {
		return false
	}
	if r.billingPresence != nil {
		if ok, err := r.billingPresence.HasEventsInRange(ctx, from, to); err == nil && ok {
			return true
		}
	}
	if r.deliveryPresence != nil {
		if ok, err := r.deliveryPresence.HasEventsInRange(ctx, from, to); err == nil && ok {
			return true
		}
	}
	return false
}

// sumOrZero applies the best-effort rule: a failed or missing sum becomes
// zero rather than failing the whole chain.
func (r *Resolver) sumOrZero(ctx context.Context, src VehicleActivity, vehicleNo string, from, to time.Time) (product.Quantities, bool) {
	q, err := src.SumForVehicleRange(ctx, vehicleNo, from, to)
	if err != nil {
		r.logger.Warn("carry-forward sum failed, treating as zero",
			slog.String("vehicle", vehicleNo), slog.Any("error", err))
		return product.Quantities{}, false
	}
	return q, true
}

// VehicleOpening resolves the opening balance for (vehicle, month). Manual
// and previously memoized entries win; otherwise the previous months are
// folded forward from the nearest anchor. Vehicle balances are floored at
// zero: a truck cannot owe negative material.
func (r *Resolver) VehicleOpening(ctx context.Context, vehicleNo, month string) (VehicleOpening, error) {
	if vehicleNo == "" {
		return VehicleOpening{}, ErrVehicleRequired
	}
	stored := map[string]VehicleOpening{}
	chain, baseMonth, err := walkBack(month, func(m string) (bool, error) {
		o, err := r.store.GetVehicleOpening(ctx, vehicleNo, m)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		stored[m] = o
		return true, nil
	})
	if err != nil {
		return VehicleOpening{}, err
	}

	opening, ok := stored[baseMonth]
	if !ok {
		// Epoch with no stored entry: implicit zero.
		opening = VehicleOpening{VehicleNo: vehicleNo, Month: baseMonth, Source: SourceCarried, Complete: true}
	}
	if len(chain) == 0 {
		return opening, nil
	}

	for i := len(chain) - 1; i >= 0; i-- {
		prevMonth := opening.Month
		from, to, err := monthBounds(prevMonth)
		if err != nil {
			return VehicleOpening{}, err
		}
		billed, okB := r.sumOrZero(ctx, r.billedVehicle, vehicleNo, from, to)
		delivered, okD := r.sumOrZero(ctx, r.deliveredVehicle, vehicleNo, from, to)
		complete := opening.Complete && okB && okD
		if billed.IsZero() && delivered.IsZero() && !r.monthHasData(ctx, prevMonth) {
			complete = false
		}
		opening = VehicleOpening{
			VehicleNo:  vehicleNo,
			Month:      chain[i],
			Qty:        opening.Qty.Add(billed).Sub(delivered).Clamp(),
			DealerCode: opening.DealerCode,
			Source:     SourceCarried,
			Complete:   complete,
		}
		if err := r.store.InsertCarriedVehicleOpening(ctx, opening); err != nil {
			r.logger.Warn("memoize vehicle opening",
				slog.String("vehicle", vehicleNo), slog.String("month", opening.Month), slog.Any("error", err))
		}
	}
	return opening, nil
}

// DealerOpening resolves a dealer's material opening for a month. Dealer
// balances are NOT clamped: negative closings are surfaced, matching the
// dealer report.
func (r *Resolver) DealerOpening(ctx context.Context, dealerKey, dealerName string, isOther bool, month string) (DealerOpening, error) {
	if dealerKey == "" {
		return DealerOpening{}, ErrDealerRequired
	}
	stored := map[string]DealerOpening{}
	chain, baseMonth, err := walkBack(month, func(m string) (bool, error) {
		o, err := r.store.GetDealerOpening(ctx, dealerKey, m)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		stored[m] = o
		return true, nil
	})
	if err != nil {
		return DealerOpening{}, err
	}

	opening, ok := stored[baseMonth]
	if !ok {
		opening = DealerOpening{DealerKey: dealerKey, DealerName: dealerName, IsOther: isOther, Month: baseMonth, Source: SourceCarried, Complete: true}
	}
	if len(chain) == 0 {
		return opening, nil
	}

	for i := len(chain) - 1; i >= 0; i-- {
		prevMonth := opening.Month
		from, to, err := monthBounds(prevMonth)
		if err != nil {
			return DealerOpening{}, err
		}
		billed, errB := r.billedDealer.SumForDealerRange(ctx, dealerKey, isOther, from, to)
		if errB != nil {
			r.logger.Warn("carry-forward dealer billed sum", slog.String("dealer", dealerKey), slog.Any("error", errB))
		}
		delivered, errD := r.deliveredDealer.SumForDealerRange(ctx, dealerKey, isOther, from, to)
		if errD != nil {
			r.logger.Warn("carry-forward dealer delivered sum", slog.String("dealer", dealerKey), slog.Any("error", errD))
		}
		complete := opening.Complete && errB == nil && errD == nil
		if billed.IsZero() && delivered.IsZero() && !r.monthHasData(ctx, prevMonth) {
			complete = false
		}
		opening = DealerOpening{
			DealerKey:  dealerKey,
			DealerCode: opening.DealerCode,
			DealerName: opening.DealerName,
			IsOther:    isOther,
			Month:      chain[i],
			Qty:        opening.Qty.Add(billed).Sub(delivered),
			Source:     SourceCarried,
			Complete:   complete,
		}
		if err := r.store.InsertCarriedDealerOpening(ctx, opening); err != nil {
			r.logger.Warn("memoize dealer opening",
				slog.String("dealer", dealerKey), slog.String("month", opening.Month), slog.Any("error", err))
		}
	}
	return opening, nil
}

// MonetaryOpening resolves a dealer's money opening for a month:
// closing = opening + sales value − collections.
func (r *Resolver) MonetaryOpening(ctx context.Context, dealerCode, dealerName, month string) (MonetaryOpening, error) {
	if dealerCode == "" {
		return MonetaryOpening{}, ErrDealerRequired
	}
	stored := map[string]MonetaryOpening{}
	chain, baseMonth, err := walkBack(month, func(m string) (bool, error) {
		o, err := r.store.GetMonetaryOpening(ctx, dealerCode, m)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		stored[m] = o
		return true, nil
	})
	if err != nil {
		return MonetaryOpening{}, err
	}

	opening, ok := stored[baseMonth]
	if !ok {
		opening = MonetaryOpening{DealerCode: dealerCode, DealerName: dealerName, Month: baseMonth, Source: SourceCarried, Complete: true}
	}
	if len(chain) == 0 {
		return opening, nil
	}

	for i := len(chain) - 1; i >= 0; i-- {
		prevMonth := opening.Month
		from, to, err := monthBounds(prevMonth)
		if err != nil {
			return MonetaryOpening{}, err
		}
		sales, errS := r.sales.SalesValueForDealerMonth(ctx, dealerCode, from, to)
		if errS != nil {
			r.logger.Warn("carry-forward sales sum", slog.String("dealer", dealerCode), slog.Any("error", errS))
		}
		collected, errC := r.collections.CollectionsForDealerMonth(ctx, dealerCode, from, to)
		if errC != nil {
			r.logger.Warn("carry-forward collections sum", slog.String("dealer", dealerCode), slog.Any("error", errC))
		}
		opening = MonetaryOpening{
			DealerCode: dealerCode,
			DealerName: opening.DealerName,
			Month:      chain[i],
			Amount:     opening.Amount + sales - collected,
			Source:     SourceCarried,
			Complete:   opening.Complete && errS == nil && errC == nil,
		}
		if err := r.store.InsertCarriedMonetaryOpening(ctx, opening); err != nil {
			r.logger.Warn("memoize monetary opening",
				slog.String("dealer", dealerCode), slog.String("month", opening.Month), slog.Any("error", err))
		}
	}
	return opening, nil
}
