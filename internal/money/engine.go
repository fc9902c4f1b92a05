// Package money computes line and aggregate VAT figures for procurement
// documents. It is the single source of totals for requisition creation,
// previews and purchase order rendering.
package money

import (
	"github.com/shopspring/decimal"
)

// VATType classifies a line for VAT purposes.
type VATType string

const (
	// VATStandard is the standard 20% rate.
	VATStandard VATType = "standard"
	// VATZero is zero-rated supply.
	VATZero VATType = "zero"
	// VATReverseCharge is the CIS domestic reverse charge: the buyer
	// accounts for VAT, so output and input legs cancel.
	VATReverseCharge VATType = "reverse-charge"
)

// standardRate is the UK standard VAT rate applied to standard and
// reverse-charge lines.
var standardRate = decimal.NewFromFloat(0.20)

// Valid reports whether v is a known VAT classification.
func (v VATType) Valid() bool {
	switch v {
	case VATStandard, VATZero, VATReverseCharge:
		return true
	}
	return false
}

// Line is the engine's view of a single document line.
type Line struct {
	Quantity  int64
	UnitPrice decimal.Decimal
	VATType   VATType
}

// Breakdown carries VAT per rate class. Reverse-charge legs are reported
// separately and must not be netted before display.
type Breakdown struct {
	Standard         decimal.Decimal
	ReverseChargeOut decimal.Decimal
	ReverseChargeIn  decimal.Decimal
	Zero             decimal.Decimal
}

// Totals is the aggregate output of the engine.
type Totals struct {
	Subtotal   decimal.Decimal
	VAT        Breakdown
	GrandTotal decimal.Decimal
}

// LineNet returns the pre-VAT amount for a line, rounded half-up to two
// decimal places at line level to match per-line display.
func LineNet(l Line) decimal.Decimal {
	qty := l.Quantity
	if qty < 0 {
		qty = 0
	}
	price := l.UnitPrice
	if price.IsNegative() {
		price = decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(qty)).Round(2)
}

// LineVAT returns the VAT accrued by a line. For reverse-charge lines this
// is the size of each leg, not the (zero) net cash effect.
func LineVAT(l Line) decimal.Decimal {
	switch l.VATType {
	case VATStandard, VATReverseCharge:
		return LineNet(l).Mul(standardRate).Round(2)
	default:
		return decimal.Zero
	}
}

// Compute aggregates totals over the given lines. It is pure: it never
// errors, coerces negative quantities and prices to zero, and its output is
// independent of line order. Unknown VAT types contribute no VAT, the same
// as zero-rated lines.
func Compute(lines []Line) Totals {
	subtotal := decimal.Zero
	std := decimal.Zero
	rc := decimal.Zero
	zero := decimal.Zero

	for _, l := range lines {
		net := LineNet(l)
		subtotal = subtotal.Add(net)
		switch l.VATType {
		case VATStandard:
			std = std.Add(net.Mul(standardRate).Round(2))
		case VATReverseCharge:
			rc = rc.Add(net.Mul(standardRate).Round(2))
		default:
			zero = zero.Add(decimal.Zero)
		}
	}

	grand := subtotal.Add(std).Add(rc).Sub(rc)
	return Totals{
		Subtotal: subtotal,
		VAT: Breakdown{
			Standard:         std,
			ReverseChargeOut: rc,
			ReverseChargeIn:  rc,
			Zero:             zero,
		},
		GrandTotal: grand,
	}
}

// GrandTotalString renders the grand total the way it is persisted on the
// requisition and purchase order rows.
func (t Totals) GrandTotalString() string {
	return t.GrandTotal.StringFixed(2)
}
