package costing

import "github.com/shopspring/decimal"

// COGS costo de la mercancía vendida de un retiro: total, costo unitario
// promedio del retiro y el desglose por capa consumida.
type COGS struct {
	TotalCost       decimal.Decimal
	AverageUnitCost decimal.Decimal
	Breakdown       []Consumption
}

// BuildCOGS arma el COGS a partir de las porciones seleccionadas.
func BuildCOGS(qty decimal.Decimal, consumptions []Consumption) COGS {
	total := TotalCost(consumptions)
	avg := decimal.Zero
	if qty.GreaterThan(decimal.Zero) {
		avg = total.Div(qty)
	}
	return COGS{TotalCost: total, AverageUnitCost: avg, Breakdown: consumptions}
}
