// Package unloading records delivery events ("unloadings"): material a vehicle
// physically delivered to a dealer on a date. It also owns the heuristic that
// infers a missing dealer/source association from the billing stream.
package unloading

import (
	"errors"
	"time"

	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
)

// Rule identifies which resolver rule produced an association.
type Rule string

const (
	// RuleSameDaySingle matched the only billing on the delivery date.
	RuleSameDaySingle Rule = "SAME_DAY_SINGLE"
	// RuleSameDayDealer matched one of several same-day billings by dealer code.
	RuleSameDayDealer Rule = "SAME_DAY_DEALER"
	// RuleSameDayUnanimous used the source shared by all same-day billings.
	RuleSameDayUnanimous Rule = "SAME_DAY_UNANIMOUS"
	// RuleNearbyDealer matched a billing within the date window by dealer code.
	RuleNearbyDealer Rule = "NEARBY_DEALER"
	// RuleNearbyClosest fell back to the closest billing in the window.
	RuleNearbyClosest Rule = "NEARBY_CLOSEST"
	// RuleHistorySingle used the vehicle's only historical billing source.
	RuleHistorySingle Rule = "HISTORY_SINGLE"
	// RuleDefault is the terminal fallback. Flagged for manual review.
	RuleDefault Rule = "DEFAULT"
)

// WindowDays bounds the nearby-date search around a delivery.
const WindowDays = 3

// Association is the inferred dealer/source link for a delivery.
type Association struct {
	Source     billing.Source `json:"source"`
	DealerCode string         `json:"dealer_code,omitempty"`
	DealerName string         `json:"dealer_name,omitempty"`
	Rule       Rule           `json:"rule"`
}

// Unresolved reports whether the association is only a default guess.
func (a Association) Unresolved() bool {
	return a.Rule == RuleDefault
}

// Event is a delivery record. Deleting one is an administrative correction;
// reconciliation recomputes from raw events, so no cascading repair is needed.
type Event struct {
	ID            int64              `json:"id"`
	BatchID       string             `json:"batch_id"`
	VehicleNo     string             `json:"vehicle_no"`
	DealerCode    string             `json:"dealer_code,omitempty"`
	DealerName    string             `json:"dealer_name"`
	Date          time.Time          `json:"date"`
	Qty           product.Quantities `json:"qty"`
	DeliveryPoint string             `json:"delivery_point,omitempty"`
	IsOtherDealer bool               `json:"is_other_dealer"`
	Source        billing.Source     `json:"source,omitempty"`
	Rule          Rule               `json:"rule,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// VehicleDaySum aggregates one vehicle's deliveries for a single day.
type VehicleDaySum struct {
	VehicleNo string
	Qty       product.Quantities
}

// DealerActivity aggregates deliveries per dealer over some window.
type DealerActivity struct {
	Key        string
	DealerCode string
	DealerName string
	IsOther    bool
	Qty        product.Quantities
}

var (
	// ErrVehicleRequired indicates a delivery without a vehicle identifier.
	ErrVehicleRequired = errors.New("unloading: vehicle number required")
	// ErrNegativeQuantity indicates a negative delivered quantity.
	ErrNegativeQuantity = errors.New("unloading: quantities must be non-negative")
	// ErrEmptyBatch indicates an ingestion request without any rows.
	ErrEmptyBatch = errors.New("unloading: empty batch")
	// ErrExceedsBilled rejects a delivery that would take cumulative delivered
	// quantity past everything ever billed for the vehicle and product type.
	ErrExceedsBilled = errors.New("unloading: delivery exceeds billed quantity")
)
