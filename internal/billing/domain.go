// Package billing records invoice events: material billed to a vehicle for a
// dealer on a calendar date, per product type.
package billing

import (
	"errors"
	"time"

	"github.com/cemtrack/cemtrack/internal/product"
)

// Source classifies where the material was loaded.
type Source string

const (
	// SourcePlant marks billing issued by the plant.
	SourcePlant Source = "PLANT"
	// SourceDepot marks billing issued by a depot.
	SourceDepot Source = "DEPOT"
)

// Ledger identifies which billing ledger an event belongs to. Ad-hoc
// counterparties without a dealer code are booked on the OTHER ledger.
type Ledger string

const (
	// LedgerPrimary is the main dealer-network ledger.
	LedgerPrimary Ledger = "PRIMARY"
	// LedgerOther is the ad-hoc "other dealers" ledger.
	LedgerOther Ledger = "OTHER"
)

// Event is an immutable invoice line. ID is the insertion sequence and breaks
// date ties when ordering lots chronologically.
type Event struct {
	ID         int64              `json:"id"`
	BatchID    string             `json:"batch_id"`
	VehicleNo  string             `json:"vehicle_no"`
	DealerCode string             `json:"dealer_code,omitempty"`
	DealerName string             `json:"dealer_name"`
	Date       time.Time          `json:"date"`
	Qty        product.Quantities `json:"qty"`
	TotalValue float64            `json:"total_value"`
	Source     Source             `json:"source"`
	Ledger     Ledger             `json:"ledger"`
	InvoiceNo  string             `json:"invoice_no,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// VehicleDaySum aggregates one vehicle's billing for a single day.
type VehicleDaySum struct {
	VehicleNo  string
	DealerCode string
	Qty        product.Quantities
}

// DealerActivity aggregates billing per dealer over some window. Key is the
// dealer code for primary-ledger dealers and the dealer name for ad-hoc ones.
type DealerActivity struct {
	Key        string
	DealerCode string
	DealerName string
	IsOther    bool
	Qty        product.Quantities
	TotalValue float64
}

var (
	// ErrVehicleRequired indicates billing without a vehicle identifier.
	ErrVehicleRequired = errors.New("billing: vehicle number required")
	// ErrNegativeQuantity indicates a negative billed quantity.
	ErrNegativeQuantity = errors.New("billing: quantities must be non-negative")
	// ErrEmptyBatch indicates an ingestion request without any rows.
	ErrEmptyBatch = errors.New("billing: empty batch")
)
