// Package balance owns opening balances: manual operator entries and the
// monthly carry-forward that derives an opening from the previous month's
// closing when no manual entry exists.
package balance

import (
	"errors"
	"time"

	"github.com/cemtrack/cemtrack/internal/product"
)

// EntrySource distinguishes operator-entered balances from carried ones.
// Reports display the two differently: carried balances compound uncertainty
// across months.
type EntrySource string

const (
	// SourceManual marks a balance entered by an operator.
	SourceManual EntrySource = "MANUAL"
	// SourceCarried marks a balance memoized by the carry-forward resolver.
	SourceCarried EntrySource = "CARRIED"
)

// VehicleOpening is the quantity a vehicle still owed going into a month.
type VehicleOpening struct {
	ID              int64              `json:"id,omitempty"`
	VehicleNo       string             `json:"vehicle_no"`
	Month           string             `json:"month"`
	Qty             product.Quantities `json:"qty"`
	DealerCode      string             `json:"dealer_code,omitempty"`
	LastBillingDate time.Time          `json:"last_billing_date,omitempty"`
	Source          EntrySource        `json:"source"`
	// Complete is false when an intermediate month in the carry-forward walk
	// had no recorded events at all: the value is best effort, not authoritative.
	Complete bool `json:"complete"`
}

// DealerOpening is a dealer's material balance going into a month,
// independent of any specific vehicle.
type DealerOpening struct {
	ID         int64              `json:"id,omitempty"`
	DealerKey  string             `json:"dealer_key"`
	DealerCode string             `json:"dealer_code,omitempty"`
	DealerName string             `json:"dealer_name"`
	IsOther    bool               `json:"is_other"`
	Month      string             `json:"month"`
	Qty        product.Quantities `json:"qty"`
	Source     EntrySource        `json:"source"`
	Complete   bool               `json:"complete"`
}

// MonetaryOpening is a dealer's money balance going into a month
// (opening + sales value − collections).
type MonetaryOpening struct {
	ID         int64       `json:"id,omitempty"`
	DealerCode string      `json:"dealer_code"`
	DealerName string      `json:"dealer_name"`
	Month      string      `json:"month"`
	Amount     float64     `json:"amount"`
	Source     EntrySource `json:"source"`
	Complete   bool        `json:"complete"`
}

var (
	// ErrVehicleRequired indicates a vehicle opening without a vehicle.
	ErrVehicleRequired = errors.New("balance: vehicle number required")
	// ErrDealerRequired indicates a dealer opening without a dealer key.
	ErrDealerRequired = errors.New("balance: dealer required")
	// ErrMonthRequired indicates a missing or malformed month key.
	ErrMonthRequired = errors.New("balance: month required as YYYY-MM")
)
