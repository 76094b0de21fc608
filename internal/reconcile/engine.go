// Package reconcile matches delivery events to the billing events that
// produced the stock, using first-in-first-out lot draining per vehicle and
// product type. Outstanding balances are a pure function of the event log:
// the engine holds no state between runs.
package reconcile

import (
	"time"

	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

// OriginKind distinguishes where a lot's quantity came from.
type OriginKind string

const (
	// OriginOpening marks the lot carried in from the month's opening balance.
	// Always the oldest lot.
	OriginOpening OriginKind = "OPENING"
	// OriginBilling marks a lot created by one billing event.
	OriginBilling OriginKind = "BILLING"
)

// Consumption attributes part of a delivery to one lot. A single delivery can
// partially satisfy two different billing dates, so the UI needs the split.
type Consumption struct {
	DeliveryID int64              `json:"delivery_id"`
	Date       time.Time          `json:"date"`
	Qty        product.Quantities `json:"qty"`
}

// Lot is an outstanding quantity originating from one billing event or from
// the opening balance. Remaining only decreases; the lot is fully consumed
// once every product type is within Epsilon of zero.
type Lot struct {
	Origin       OriginKind         `json:"origin"`
	BillingID    int64              `json:"billing_id,omitempty"`
	Date         time.Time          `json:"date"`
	DealerCode   string             `json:"dealer_code,omitempty"`
	DealerName   string             `json:"dealer_name,omitempty"`
	Billed       product.Quantities `json:"billed"`
	Remaining    product.Quantities `json:"remaining"`
	Consumptions []Consumption      `json:"consumptions,omitempty"`
}

// Consumed returns the quantity already matched to deliveries.
func (l Lot) Consumed() product.Quantities {
	return l.Billed.Sub(l.Remaining)
}

// FullyConsumed reports whether nothing meaningful remains.
func (l Lot) FullyConsumed() bool {
	return l.Remaining.IsZero()
}

// Result is the reconciliation outcome for one vehicle.
type Result struct {
	VehicleNo string             `json:"vehicle_no"`
	Lots      []Lot              `json:"lots"`
	Pending   product.Quantities `json:"pending"`
	// Anomaly is delivered quantity that no lot could absorb. The ingestion
	// boundary should have rejected it; it is surfaced, never dropped.
	Anomaly product.Quantities `json:"anomaly,omitempty"`
}

// PendingLots returns only lots that still hold material.
func (r Result) PendingLots() []Lot {
	var out []Lot
	for _, l := range r.Lots {
		if !l.FullyConsumed() {
			out = append(out, l)
		}
	}
	return out
}

// Opening seeds the oldest lot of a reconciliation window.
type Opening struct {
	Qty         product.Quantities
	BillingDate time.Time
	DealerCode  string
	DealerName  string
}

// Reconcile drains deliveries into lots oldest-first, independently per
// product type. Billing events must be ordered by (date, id) and deliveries
// by (date, id); the walk is O(lots + deliveries) per type because a drained
// lot is never revisited.
func Reconcile(vehicleNo string, opening *Opening, billings []billing.Event, deliveries []unloading.Event) Result {
	lots := make([]Lot, 0, len(billings)+1)
	if opening != nil && !opening.Qty.IsZero() {
		lots = append(lots, Lot{
			Origin:     OriginOpening,
			Date:       opening.BillingDate,
			DealerCode: opening.DealerCode,
			DealerName: opening.DealerName,
			Billed:     opening.Qty,
			Remaining:  opening.Qty,
		})
	}
	for _, b := range billings {
		lots = append(lots, Lot{
			Origin:     OriginBilling,
			BillingID:  b.ID,
			Date:       b.Date,
			DealerCode: b.DealerCode,
			DealerName: b.DealerName,
			Billed:     b.Qty,
			Remaining:  b.Qty,
		})
	}

	res := Result{VehicleNo: vehicleNo}
	// One cursor per product type: index of the oldest lot still holding that
	// type. Lots carry all three types, so the cursors advance independently.
	cursors := map[product.Type]int{}

	for _, d := range deliveries {
		for _, t := range product.Types {
			rem := d.Qty.Get(t)
			if rem <= product.Epsilon {
				continue
			}
			i := cursors[t]
			for rem > product.Epsilon && i < len(lots) {
				avail := lots[i].Remaining.Get(t)
				if avail <= product.Epsilon {
					i++
					continue
				}
				take := min(rem, avail)
				lots[i].Remaining.Set(t, avail-take)
				rem -= take
				recordConsumption(&lots[i], d, t, take)
			}
			cursors[t] = i
			if rem > product.Epsilon {
				res.Anomaly.Set(t, res.Anomaly.Get(t)+rem)
			}
		}
	}

	for _, l := range lots {
		res.Pending = res.Pending.Add(l.Remaining.Clamp())
	}
	res.Lots = lots
	return res
}

// recordConsumption merges repeated takes from the same delivery into one
// attribution entry per lot.
func recordConsumption(lot *Lot, d unloading.Event, t product.Type, qty float64) {
	for i := range lot.Consumptions {
		if lot.Consumptions[i].DeliveryID == d.ID {
			lot.Consumptions[i].Qty.Set(t, lot.Consumptions[i].Qty.Get(t)+qty)
			return
		}
	}
	var q product.Quantities
	q.Set(t, qty)
	lot.Consumptions = append(lot.Consumptions, Consumption{DeliveryID: d.ID, Date: d.Date, Qty: q})
}
