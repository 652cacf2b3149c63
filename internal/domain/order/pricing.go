package order

import "github.com/shopspring/decimal"

// taxRate is the flat sales tax applied to every order subtotal.
var taxRate = decimal.RequireFromString("0.08")

// shippingCharge is currently always zero; the field is carried through the
// amounts so a future non-zero charge does not change the stored shape.
var shippingCharge = decimal.Zero

// Price computes the authoritative amounts for a list of line items.
//
// It is pure and deterministic: no I/O, no state, identical output for
// identical input. Arithmetic is exact decimal; each amount is rounded to
// 2 decimal places, and the tax and final amounts are derived from the
// already-rounded subtotal so that
// FinalAmount = Subtotal + TaxAmount + ShippingCharge holds exactly.
func Price(items []Item) Amounts {
	subtotal := decimal.Zero
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal = subtotal.Add(it.UnitPrice.Mul(qty))
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(taxRate).Round(2)
	final := subtotal.Add(tax).Add(shippingCharge).Round(2)

	return Amounts{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingCharge: shippingCharge,
		FinalAmount:    final,
	}
}
