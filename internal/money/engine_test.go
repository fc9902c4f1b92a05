package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeWorkedExample(t *testing.T) {
	lines := []Line{
		{Quantity: 10, UnitPrice: dec("5.00"), VATType: VATStandard},
		{Quantity: 1, UnitPrice: dec("100.00"), VATType: VATZero},
	}
	totals := Compute(lines)
	require.Equal(t, "150.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "10.00", totals.VAT.Standard.StringFixed(2))
	require.Equal(t, "0.00", totals.VAT.Zero.StringFixed(2))
	require.Equal(t, "160.00", totals.GrandTotal.StringFixed(2))
}

func TestComputeZeroRatedReconciliation(t *testing.T) {
	lines := []Line{
		{Quantity: 3, UnitPrice: dec("12.50"), VATType: VATZero},
		{Quantity: 7, UnitPrice: dec("0.99"), VATType: VATZero},
	}
	totals := Compute(lines)
	require.True(t, totals.GrandTotal.Equal(totals.Subtotal))
	require.True(t, totals.VAT.Zero.IsZero())
	require.True(t, totals.VAT.Standard.IsZero())
}

func TestComputeReverseChargeNetsToZero(t *testing.T) {
	lines := []Line{
		{Quantity: 2, UnitPrice: dec("450.00"), VATType: VATReverseCharge},
		{Quantity: 1, UnitPrice: dec("99.99"), VATType: VATReverseCharge},
	}
	totals := Compute(lines)
	require.True(t, totals.GrandTotal.Equal(totals.Subtotal))
	require.False(t, totals.VAT.ReverseChargeOut.IsZero())
	require.True(t, totals.VAT.ReverseChargeOut.Equal(totals.VAT.ReverseChargeIn))
}

func TestComputeLineLevelRounding(t *testing.T) {
	// 3 x 0.335 rounds to 1.01 at line level, not 1.005 -> 1.00 at aggregate.
	totals := Compute([]Line{{Quantity: 3, UnitPrice: dec("0.335"), VATType: VATZero}})
	require.Equal(t, "1.01", totals.Subtotal.StringFixed(2))
}

func TestComputeIsPureAndOrderIndependent(t *testing.T) {
	a := []Line{
		{Quantity: 4, UnitPrice: dec("19.99"), VATType: VATStandard},
		{Quantity: 1, UnitPrice: dec("250.00"), VATType: VATReverseCharge},
		{Quantity: 12, UnitPrice: dec("1.05"), VATType: VATZero},
	}
	b := []Line{a[2], a[0], a[1]}

	first := Compute(a)
	second := Compute(a)
	reordered := Compute(b)

	require.Equal(t, first, second)
	require.True(t, first.Subtotal.Equal(reordered.Subtotal))
	require.True(t, first.VAT.Standard.Equal(reordered.VAT.Standard))
	require.True(t, first.VAT.ReverseChargeOut.Equal(reordered.VAT.ReverseChargeOut))
	require.True(t, first.GrandTotal.Equal(reordered.GrandTotal))
}

func TestComputeCoercesInvalidInput(t *testing.T) {
	totals := Compute([]Line{
		{Quantity: -5, UnitPrice: dec("10.00"), VATType: VATStandard},
		{Quantity: 2, UnitPrice: dec("-3.00"), VATType: VATStandard},
	})
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.GrandTotal.IsZero())
}

func TestVATTypeValid(t *testing.T) {
	require.True(t, VATStandard.Valid())
	require.True(t, VATZero.Valid())
	require.True(t, VATReverseCharge.Valid())
	require.False(t, VATType("Standard").Valid())
	require.False(t, VATType("").Valid())
}
