// Package costing decide qué capas de costo satisfacen un retiro de stock
// según el método configurado (FIFO, LIFO, promedio ponderado o identificación
// específica). Servicio de dominio puro: no muta capas ni toca persistencia.
package costing

import (
	"sort"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Consumption una porción de retiro asignada a una capa concreta.
type Consumption struct {
	LayerID  string
	Qty      decimal.Decimal
	UnitCost decimal.Decimal // costo con el que se reporta el COGS de esta porción
}

// Options parámetros adicionales por método.
type Options struct {
	// LayerID capa exacta para identificación específica.
	LayerID string
	// AverageCost costo promedio corrido vigente; obligatorio para
	// WEIGHTED_AVERAGE (lo aporta el servicio de valoración dentro de la
	// misma sección crítica de la venta).
	AverageCost decimal.Decimal
}

// SelectConsumption devuelve la lista ordenada de (capa, cantidad) que cubre
// qtyNeeded bajo el método dado. Falla con ErrInsufficientStock si las capas
// activas no alcanzan: el retiro se rechaza completo, nunca parcial.
//
// Bajo WEIGHTED_AVERAGE las capas físicas igualmente se descuentan FIFO para
// mantener la contabilidad de capas consistente, pero cada porción se reporta
// al costo promedio, no al costo de su capa.
func SelectConsumption(itemID string, layers []*entity.CostLayer, qtyNeeded decimal.Decimal, method entity.Method, opts Options) ([]Consumption, error) {
	if !qtyNeeded.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidQuantity
	}

	active := activeOldestFirst(layers)

	switch method {
	case entity.MethodFIFO:
		return greedy(itemID, active, qtyNeeded, nil)
	case entity.MethodLIFO:
		reverse(active)
		return greedy(itemID, active, qtyNeeded, nil)
	case entity.MethodWeightedAverage:
		avg := opts.AverageCost
		return greedy(itemID, active, qtyNeeded, &avg)
	case entity.MethodSpecificID:
		return specific(itemID, active, qtyNeeded, opts.LayerID)
	}
	return nil, domain.ErrUnknownCostingMethod
}

// greedy consume capas en el orden dado hasta agotar qtyNeeded. Si reportCost
// no es nil, cada porción se reporta a ese costo (promedio ponderado).
func greedy(itemID string, ordered []*entity.CostLayer, qtyNeeded decimal.Decimal, reportCost *decimal.Decimal) ([]Consumption, error) {
	available := totalRemaining(ordered)
	if available.LessThan(qtyNeeded) {
		return nil, domain.NewStockShortage(itemID, qtyNeeded, available)
	}

	remaining := qtyNeeded
	out := make([]Consumption, 0, len(ordered))
	for _, layer := range ordered {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, layer.QtyRemaining)
		cost := layer.UnitCost
		if reportCost != nil {
			cost = *reportCost
		}
		out = append(out, Consumption{LayerID: layer.ID, Qty: take, UnitCost: cost})
		remaining = remaining.Sub(take)
	}
	return out, nil
}

// specific valida que la capa indicada exista, esté activa y tenga cantidad
// suficiente; el retiro sale completo de esa capa.
func specific(itemID string, active []*entity.CostLayer, qtyNeeded decimal.Decimal, layerID string) ([]Consumption, error) {
	if layerID == "" {
		return nil, domain.ErrInvalidInput
	}
	for _, layer := range active {
		if layer.ID != layerID {
			continue
		}
		if layer.QtyRemaining.LessThan(qtyNeeded) {
			return nil, domain.NewLayerShortage(itemID, layerID, qtyNeeded, layer.QtyRemaining)
		}
		return []Consumption{{LayerID: layer.ID, Qty: qtyNeeded, UnitCost: layer.UnitCost}}, nil
	}
	return nil, domain.ErrNotFound
}

// TotalCost suma qty*costo de las porciones seleccionadas.
func TotalCost(consumptions []Consumption) decimal.Decimal {
	total := decimal.Zero
	for _, c := range consumptions {
		total = total.Add(c.Qty.Mul(c.UnitCost))
	}
	return total
}

// activeOldestFirst filtra capas inactivas y ordena por fecha ascendente con
// el orden de creación (Seq) como desempate, para que capas de la misma fecha
// se consuman de forma determinista.
func activeOldestFirst(layers []*entity.CostLayer) []*entity.CostLayer {
	active := make([]*entity.CostLayer, 0, len(layers))
	for _, l := range layers {
		if l.Active() {
			active = append(active, l)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Date.Equal(active[j].Date) {
			return active[i].Seq < active[j].Seq
		}
		return active[i].Date.Before(active[j].Date)
	})
	return active
}

func reverse(layers []*entity.CostLayer) {
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
}

func totalRemaining(layers []*entity.CostLayer) decimal.Decimal {
	total := decimal.Zero
	for _, l := range layers {
		total = total.Add(l.QtyRemaining)
	}
	return total
}
