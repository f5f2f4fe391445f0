// Package tax calcula la partición de impuestos GST (India) de un monto:
// intra-estado se divide en partes iguales CGST/SGST, inter-estado va completo
// a IGST. Funciones puras sin estado, seguras para llamar en paralelo.
package tax

import (
	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)
var hundred = decimal.NewFromInt(100)

// Split resultado de la partición de impuestos de un subtotal.
// Invariante: Subtotal + TotalTax + RoundOff == RoundedTotal exacto.
type Split struct {
	Subtotal     decimal.Decimal
	Rate         decimal.Decimal // porcentaje, ej. 18
	SellerState  string
	BuyerState   string
	CGST         decimal.Decimal
	SGST         decimal.Decimal
	IGST         decimal.Decimal
	TotalTax     decimal.Decimal
	GrandTotal   decimal.Decimal
	RoundedTotal decimal.Decimal
	RoundOff     decimal.Decimal // RoundedTotal - GrandTotal, siempre visible
}

// Intrastate indica si la venta tributa como intra-estado (CGST+SGST).
func (s Split) Intrastate() bool { return s.BuyerState == "" || s.BuyerState == s.SellerState }

// Compute calcula la partición CGST/SGST vs IGST según jurisdicciones.
// buyerState vacío o igual a sellerState => intra-estado: CGST = SGST = mitad
// del impuesto. Distinto => inter-estado: todo a IGST. El total redondeado usa
// RoundTotal y la diferencia queda expuesta en RoundOff.
func Compute(subtotal, rate decimal.Decimal, sellerState, buyerState string) (Split, error) {
	if subtotal.LessThan(decimal.Zero) {
		return Split{}, domain.ErrInvalidInput
	}
	if rate.LessThan(decimal.Zero) {
		return Split{}, domain.ErrInvalidInput
	}

	totalTax := subtotal.Mul(rate).Div(hundred)
	split := Split{
		Subtotal:    subtotal,
		Rate:        rate,
		SellerState: sellerState,
		BuyerState:  buyerState,
		TotalTax:    totalTax,
	}
	if buyerState == "" || buyerState == sellerState {
		// Intra-estado: mitad central, mitad estatal.
		half := totalTax.Div(two)
		split.CGST = half
		split.SGST = half
	} else {
		split.IGST = totalTax
	}

	split.GrandTotal = subtotal.Add(totalTax)
	split.RoundedTotal, split.RoundOff = RoundTotal(split.GrandTotal)
	return split, nil
}

// RoundTotal redondea un monto a la unidad monetaria entera más cercana con
// la regla "mitad lejos de cero" (1180.50 -> 1181, -1180.50 -> -1181), la
// misma que aplica decimal.Round. Se aplica simétricamente a montos negativos
// (devoluciones). diff = rounded - amount; se asienta como línea de redondeo
// para que subtotal + impuesto + diff cierre exacto contra el total cobrado.
func RoundTotal(amount decimal.Decimal) (rounded, diff decimal.Decimal) {
	rounded = amount.Round(0)
	diff = rounded.Sub(amount)
	return rounded, diff
}
