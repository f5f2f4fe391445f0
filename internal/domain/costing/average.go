package costing

import (
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// AverageOfLayers costo promedio ponderado del remanente de las capas activas.
// Sirve de contraste contra el promedio corrido del ledger en los chequeos de
// consistencia; con remanente cero devuelve cero.
func AverageOfLayers(layers []*entity.CostLayer) decimal.Decimal {
	qty := decimal.Zero
	value := decimal.Zero
	for _, l := range layers {
		if !l.Active() {
			continue
		}
		qty = qty.Add(l.QtyRemaining)
		value = value.Add(l.RemainingValue())
	}
	if !qty.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	return value.Div(qty)
}
