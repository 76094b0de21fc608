// Package ledger tracks dealer money: payments collected against invoiced
// sales, and the running outstanding derived from monetary openings.
package ledger

import (
	"errors"
	"time"
)

// Mode is how a payment arrived.
type Mode string

const (
	// ModeCash is a cash deposit.
	ModeCash Mode = "CASH"
	// ModeBank is a bank transfer or cheque.
	ModeBank Mode = "BANK"
	// ModeAdjustment is a credit note or write-off.
	ModeAdjustment Mode = "ADJUSTMENT"
)

// Collection is one payment received from a dealer.
type Collection struct {
	ID         int64     `json:"id"`
	DealerCode string    `json:"dealer_code"`
	DealerName string    `json:"dealer_name"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount"`
	Mode       Mode      `json:"mode"`
	Reference  string    `json:"reference,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Statement is a dealer's money position for one month.
type Statement struct {
	DealerCode  string       `json:"dealer_code"`
	DealerName  string       `json:"dealer_name"`
	Month       string       `json:"month"`
	Opening     float64      `json:"opening"`
	Sales       float64      `json:"sales"`
	Collected   float64      `json:"collected"`
	Closing     float64      `json:"closing"`
	Collections []Collection `json:"collections,omitempty"`
	// Complete is false when the opening rests on months with no data.
	Complete bool `json:"complete"`
}

var (
	// ErrDealerRequired indicates a collection without a dealer code.
	ErrDealerRequired = errors.New("ledger: dealer code required")
	// ErrNonPositiveAmount indicates a zero or negative payment.
	ErrNonPositiveAmount = errors.New("ledger: amount must be positive")
	// ErrBadMode indicates an unknown payment mode.
	ErrBadMode = errors.New("ledger: unknown payment mode")
)
