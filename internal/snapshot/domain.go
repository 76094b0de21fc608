// Package snapshot materializes a per-vehicle daily balance table so
// "balance as of date D" is a single row lookup instead of a FIFO replay.
package snapshot

import (
	"errors"
	"time"

	"github.com/cemtrack/cemtrack/internal/product"
)

// DayBalance is one vehicle's outstanding quantity at the end of one day.
type DayBalance struct {
	ID        int64              `json:"id,omitempty"`
	Date      time.Time          `json:"date"`
	VehicleNo string             `json:"vehicle_no"`
	Qty       product.Quantities `json:"qty"`
	UpdatedAt time.Time          `json:"updated_at,omitempty"`
}

// Total is the aggregate across product types.
func (b DayBalance) Total() float64 {
	return b.Qty.Total()
}

// ErrDateBeforeEpoch indicates a snapshot query for a date before any data.
var ErrDateBeforeEpoch = errors.New("snapshot: date predates epoch")
