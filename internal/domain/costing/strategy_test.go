package costing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/costing"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Capas de prueba del vector clásico:
//
//	L1: 100 unidades @ 10.00 (más antigua)
//	L2:  50 unidades @ 12.00
//
// FIFO vende 120 → 100@10 + 20@12 = 1240
// LIFO vende  30 →  30@12        =  360

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func layer(id string, seq int64, daysOffset int, qtyRemaining, unitCost string) *entity.CostLayer {
	return &entity.CostLayer{
		ID:           id,
		OrgID:        "o1",
		ItemID:       "item-1",
		Date:         base.AddDate(0, 0, daysOffset),
		Source:       entity.LayerSourcePURCHASE,
		QtyReceived:  d(qtyRemaining),
		QtyRemaining: d(qtyRemaining),
		UnitCost:     d(unitCost),
		Seq:          seq,
	}
}

func twoLayers() []*entity.CostLayer {
	return []*entity.CostLayer{
		layer("L1", 1, 0, "100", "10"),
		layer("L2", 2, 1, "50", "12"),
	}
}

func TestSelectConsumption_FIFO(t *testing.T) {
	out, err := costing.SelectConsumption("item-1", twoLayers(), d("120"), entity.MethodFIFO, costing.Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "L1", out[0].LayerID, "FIFO consume primero la capa más antigua")
	assert.True(t, out[0].Qty.Equal(d("100")))
	assert.True(t, out[0].UnitCost.Equal(d("10")))
	assert.Equal(t, "L2", out[1].LayerID)
	assert.True(t, out[1].Qty.Equal(d("20")))
	assert.True(t, out[1].UnitCost.Equal(d("12")))

	assert.True(t, costing.TotalCost(out).Equal(d("1240")),
		"COGS FIFO de 120 unidades debe ser 1240, fue %s", costing.TotalCost(out))
}

func TestSelectConsumption_LIFO(t *testing.T) {
	out, err := costing.SelectConsumption("item-1", twoLayers(), d("30"), entity.MethodLIFO, costing.Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "L2", out[0].LayerID, "LIFO consume primero la capa más reciente")
	assert.True(t, costing.TotalCost(out).Equal(d("360")))
}

// TestSelectConsumption_LIFOCruzaCapas: LIFO que agota la capa reciente sigue
// con la anterior.
func TestSelectConsumption_LIFOCruzaCapas(t *testing.T) {
	out, err := costing.SelectConsumption("item-1", twoLayers(), d("70"), entity.MethodLIFO, costing.Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "L2", out[0].LayerID)
	assert.True(t, out[0].Qty.Equal(d("50")))
	assert.Equal(t, "L1", out[1].LayerID)
	assert.True(t, out[1].Qty.Equal(d("20")))
	// 50*12 + 20*10 = 800
	assert.True(t, costing.TotalCost(out).Equal(d("800")))
}

// TestSelectConsumption_PromedioPonderado: las capas físicas se descuentan
// FIFO pero cada porción se reporta al costo promedio vigente, no al de su capa.
func TestSelectConsumption_PromedioPonderado(t *testing.T) {
	avg := d("10.67")
	out, err := costing.SelectConsumption("item-1", twoLayers(), d("120"), entity.MethodWeightedAverage,
		costing.Options{AverageCost: avg})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "L1", out[0].LayerID, "físicamente se descuenta FIFO")
	for _, c := range out {
		assert.True(t, c.UnitCost.Equal(avg),
			"cada porción debe reportarse al promedio %s, fue %s", avg, c.UnitCost)
	}
	assert.True(t, costing.TotalCost(out).Equal(d("120").Mul(avg)))
}

func TestSelectConsumption_EspecificaPorCapa(t *testing.T) {
	out, err := costing.SelectConsumption("item-1", twoLayers(), d("40"), entity.MethodSpecificID,
		costing.Options{LayerID: "L2"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "L2", out[0].LayerID)
	assert.True(t, out[0].UnitCost.Equal(d("12")), "el costo sale de la capa elegida")
}

func TestSelectConsumption_EspecificaInsuficiente(t *testing.T) {
	_, err := costing.SelectConsumption("item-1", twoLayers(), d("60"), entity.MethodSpecificID,
		costing.Options{LayerID: "L2"})
	assert.ErrorIs(t, err, domain.ErrInsufficientLayer,
		"pedir 60 de una capa con 50 debe fallar aunque el stock total alcance")
}

func TestSelectConsumption_EspecificaCapaInexistente(t *testing.T) {
	_, err := costing.SelectConsumption("item-1", twoLayers(), d("10"), entity.MethodSpecificID,
		costing.Options{LayerID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSelectConsumption_EspecificaSinCapa(t *testing.T) {
	_, err := costing.SelectConsumption("item-1", twoLayers(), d("10"), entity.MethodSpecificID, costing.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestSelectConsumption_StockInsuficiente: el retiro se rechaza completo, con
// el detalle de lo pedido vs. lo disponible.
func TestSelectConsumption_StockInsuficiente(t *testing.T) {
	_, err := costing.SelectConsumption("item-1", twoLayers(), d("200"), entity.MethodFIFO, costing.Options{})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var shortage *domain.StockShortageError
	require.ErrorAs(t, err, &shortage)
	assert.True(t, shortage.Requested.Equal(d("200")))
	assert.True(t, shortage.Available.Equal(d("150")))
	assert.Equal(t, "item-1", shortage.ItemID)
}

func TestSelectConsumption_CantidadInvalida(t *testing.T) {
	_, err := costing.SelectConsumption("item-1", twoLayers(), d("0"), entity.MethodFIFO, costing.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = costing.SelectConsumption("item-1", twoLayers(), d("-5"), entity.MethodFIFO, costing.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestSelectConsumption_MetodoDesconocido(t *testing.T) {
	_, err := costing.SelectConsumption("item-1", twoLayers(), d("10"), entity.Method("AVERAGE"), costing.Options{})
	assert.ErrorIs(t, err, domain.ErrUnknownCostingMethod)
}

// TestSelectConsumption_DesempatePorSeq: capas con la misma fecha se consumen
// en orden de creación para que el resultado sea determinista.
func TestSelectConsumption_DesempatePorSeq(t *testing.T) {
	layers := []*entity.CostLayer{
		layer("B", 2, 0, "10", "20"),
		layer("A", 1, 0, "10", "15"),
	}
	out, err := costing.SelectConsumption("item-1", layers, d("5"), entity.MethodFIFO, costing.Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].LayerID, "a fecha igual gana la capa creada primero (Seq menor)")
}

// TestSelectConsumption_IgnoraCapasAgotadas: capas con remanente cero no
// participan de la selección.
func TestSelectConsumption_IgnoraCapasAgotadas(t *testing.T) {
	exhausted := layer("L0", 0, -1, "80", "8")
	exhausted.QtyRemaining = decimal.Zero
	layers := append([]*entity.CostLayer{exhausted}, twoLayers()...)

	out, err := costing.SelectConsumption("item-1", layers, d("100"), entity.MethodFIFO, costing.Options{})
	require.NoError(t, err)
	for _, c := range out {
		assert.NotEqual(t, "L0", c.LayerID, "una capa agotada nunca debe consumirse")
	}
}

// TestSelectConsumption_NoMutaCapas: el estratega es puro, decide sin tocar
// el remanente de las capas.
func TestSelectConsumption_NoMutaCapas(t *testing.T) {
	layers := twoLayers()
	_, err := costing.SelectConsumption("item-1", layers, d("120"), entity.MethodFIFO, costing.Options{})
	require.NoError(t, err)

	assert.True(t, layers[0].QtyRemaining.Equal(d("100")))
	assert.True(t, layers[1].QtyRemaining.Equal(d("50")))
}

// ── COGS ─────────────────────────────────────────────────────────────────────

func TestBuildCOGS(t *testing.T) {
	out, err := costing.SelectConsumption("item-1", twoLayers(), d("120"), entity.MethodFIFO, costing.Options{})
	require.NoError(t, err)

	cogs := costing.BuildCOGS(d("120"), out)
	assert.True(t, cogs.TotalCost.Equal(d("1240")))
	// 1240 / 120 = 10.333...
	assert.True(t, cogs.AverageUnitCost.Equal(d("1240").Div(d("120"))))
	assert.Len(t, cogs.Breakdown, 2)
}

// ── Promedio ponderado ───────────────────────────────────────────────────────

func TestAverageOfLayers(t *testing.T) {
	// 100 @ 10 + 50 @ 16 → (1000 + 800) / 150 = 12
	layers := []*entity.CostLayer{
		layer("L1", 1, 0, "100", "10"),
		layer("L2", 2, 1, "50", "16"),
	}
	assert.True(t, costing.AverageOfLayers(layers).Equal(d("12")))
}

func TestAverageOfLayers_SoloActivas(t *testing.T) {
	exhausted := layer("L0", 0, -1, "999", "100")
	exhausted.QtyRemaining = decimal.Zero
	layers := []*entity.CostLayer{exhausted, layer("L1", 1, 0, "100", "10")}

	assert.True(t, costing.AverageOfLayers(layers).Equal(d("10")),
		"capas agotadas no deben pesar en el promedio")
}

func TestAverageOfLayers_Vacio(t *testing.T) {
	assert.True(t, costing.AverageOfLayers(nil).IsZero())
}

// Comprobación de que los errores de faltante envuelven ambos sentinelas según
// el caso sin perder el detalle.
func TestStockShortage_Unwrap(t *testing.T) {
	err := domain.NewLayerShortage("item-1", "L9", d("10"), d("3"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientLayer))
	assert.False(t, errors.Is(err, domain.ErrInsufficientStock))
}
