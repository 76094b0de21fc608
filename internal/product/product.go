// Package product defines the cement product categories and the per-type
// quantity value object shared by every reconciliation component.
package product

import "math"

// Type enumerates the tracked cement product categories.
type Type string

const (
	// TypePPC is Portland Pozzolana Cement.
	TypePPC Type = "PPC"
	// TypePremium is the premium-grade blend.
	TypePremium Type = "PREMIUM"
	// TypeOPC is Ordinary Portland Cement.
	TypeOPC Type = "OPC"
)

// Types lists all product types in canonical order.
var Types = []Type{TypePPC, TypePremium, TypeOPC}

// Epsilon is the tolerance under which a quantity is treated as zero.
// Quantities arrive from spreadsheets as decimals and accumulate
// floating-point noise across many additions.
const Epsilon = 0.01

// BagsPerUnit converts metric tonnes to bags for display. The engine never
// operates on bags.
const BagsPerUnit = 20

// Quantities holds one quantity per product type, in metric tonnes.
type Quantities struct {
	PPC     float64 `json:"ppc"`
	Premium float64 `json:"premium"`
	OPC     float64 `json:"opc"`
}

// Get returns the quantity for a single type.
func (q Quantities) Get(t Type) float64 {
	switch t {
	case TypePPC:
		return q.PPC
	case TypePremium:
		return q.Premium
	case TypeOPC:
		return q.OPC
	}
	return 0
}

// Set overwrites the quantity for a single type.
func (q *Quantities) Set(t Type, v float64) {
	switch t {
	case TypePPC:
		q.PPC = v
	case TypePremium:
		q.Premium = v
	case TypeOPC:
		q.OPC = v
	}
}

// Add returns q + o per type.
func (q Quantities) Add(o Quantities) Quantities {
	return Quantities{PPC: q.PPC + o.PPC, Premium: q.Premium + o.Premium, OPC: q.OPC + o.OPC}
}

// Sub returns q - o per type.
func (q Quantities) Sub(o Quantities) Quantities {
	return Quantities{PPC: q.PPC - o.PPC, Premium: q.Premium - o.Premium, OPC: q.OPC - o.OPC}
}

// Clamp floors each type at zero.
func (q Quantities) Clamp() Quantities {
	return Quantities{PPC: math.Max(0, q.PPC), Premium: math.Max(0, q.Premium), OPC: math.Max(0, q.OPC)}
}

// Total sums all types.
func (q Quantities) Total() float64 {
	return q.PPC + q.Premium + q.OPC
}

// IsZero reports whether every type is within Epsilon of zero.
func (q Quantities) IsZero() bool {
	return math.Abs(q.PPC) <= Epsilon && math.Abs(q.Premium) <= Epsilon && math.Abs(q.OPC) <= Epsilon
}

// Bags converts the total to display bags.
func (q Quantities) Bags() float64 {
	return q.Total() * BagsPerUnit
}
