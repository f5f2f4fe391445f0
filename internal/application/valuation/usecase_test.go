package valuation_test

import (
	"context"
	"testing"
	"time"

	"github.com/jhoicas/Costeo-api/internal/application/engine"
	"github.com/jhoicas/Costeo-api/internal/application/valuation"
	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
	"github.com/jhoicas/Costeo-api/internal/infrastructure/lock"
	"github.com/jhoicas/Costeo-api/internal/infrastructure/memory"
	"github.com/jhoicas/Costeo-api/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const org = "org-1"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// El lado de lectura se prueba sobre estado sembrado por el motor real: así
// cada consulta ve exactamente lo que vería en producción.
func seed(t *testing.T) (*valuation.UseCase, *engine.EngineUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	uc := engine.NewEngineUseCase(store, lock.NewKeyedLock(), engine.Config{}, logger.Nop())
	val := valuation.NewUseCase(store, store, store, entity.MethodFIFO)
	return val, uc, store
}

func purchase(t *testing.T, uc *engine.EngineUseCase, itemID, qty, cost string, date time.Time) {
	t.Helper()
	_, err := uc.PostPurchase(context.Background(), engine.PurchaseInput{
		OrgID: org, ItemID: itemID, Qty: d(qty), UnitCost: d(cost), Date: date,
	})
	require.NoError(t, err)
}

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestSnapshot(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)
	purchase(t, uc, "widget", "50", "16", day0.AddDate(0, 0, 1))

	snap, err := val.Snapshot(context.Background(), org, "widget")
	require.NoError(t, err)

	assert.True(t, snap.CurrentStock.Equal(d("150")))
	assert.True(t, snap.TotalValue.Equal(d("1800")))
	assert.True(t, snap.AverageCost.Equal(d("12")))
	require.NotNil(t, snap.LastPurchaseDate)
	assert.True(t, snap.LastPurchaseDate.Equal(day0.AddDate(0, 0, 1)))
	assert.True(t, snap.LastPurchaseCost.Equal(d("16")), "la última compra es la más reciente por fecha")
}

func TestSnapshot_ItemSinMovimientos(t *testing.T) {
	val, _, _ := seed(t)

	snap, err := val.Snapshot(context.Background(), org, "fantasma")
	require.NoError(t, err)
	assert.True(t, snap.CurrentStock.IsZero())
	assert.Nil(t, snap.LastPurchaseDate)
}

func TestReport(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)
	purchase(t, uc, "gadget", "20", "50", day0)

	report, err := val.Report(context.Background(), org, nil)
	require.NoError(t, err)

	require.Len(t, report.Items, 2)
	assert.Equal(t, "gadget", report.Items[0].ItemID, "el reporte sale ordenado por ítem")
	assert.True(t, report.TotalQuantity.Equal(d("120")))
	assert.True(t, report.TotalValue.Equal(d("2000")), "1000 de widget + 1000 de gadget")
}

// TestReport_ConCorte: asOf excluye movimientos posteriores; el reporte a una
// fecha pasada reconstruye el estado de ese momento.
func TestReport_ConCorte(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)
	purchase(t, uc, "widget", "50", "16", day0.AddDate(0, 0, 5))

	asOf := day0.AddDate(0, 0, 1)
	report, err := val.Report(context.Background(), org, &asOf)
	require.NoError(t, err)

	require.Len(t, report.Items, 1)
	assert.True(t, report.Items[0].CurrentStock.Equal(d("100")),
		"la compra posterior al corte no debe contarse")
	assert.True(t, report.TotalValue.Equal(d("1000")))
}

// TestReport_Repetible: dos lecturas sin escrituras intermedias devuelven lo
// mismo (el reporte no tiene efectos).
func TestReport_Repetible(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)

	r1, err := val.Report(context.Background(), org, nil)
	require.NoError(t, err)
	r2, err := val.Report(context.Background(), org, nil)
	require.NoError(t, err)

	assert.True(t, r1.TotalValue.Equal(r2.TotalValue))
	assert.True(t, r1.TotalQuantity.Equal(r2.TotalQuantity))
	assert.Len(t, r2.Items, len(r1.Items))
}

// TestLedger_OrdenDeReproduccion: el historial sale en orden (fecha, seq) y
// respeta el paginado.
func TestLedger_OrdenDeReproduccion(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)
	purchase(t, uc, "widget", "50", "12", day0.AddDate(0, 0, 1))
	purchase(t, uc, "widget", "25", "14", day0.AddDate(0, 0, 2))

	entries, err := val.Ledger(context.Background(), org, "widget", nil, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.EqualValues(t, 1, entries[0].Seq)
	assert.EqualValues(t, 3, entries[2].Seq)

	entries, err = val.Ledger(context.Background(), org, "widget", nil, nil, 1, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 2, entries[0].Seq, "limit 1 offset 1 devuelve el segundo asiento")
}

// ── Simulación de COGS ───────────────────────────────────────────────────────

func TestComputeCOGS_NoConsume(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)
	purchase(t, uc, "widget", "50", "12", day0.AddDate(0, 0, 1))

	cogs, err := val.ComputeCOGS(context.Background(), org, "widget", d("120"), entity.MethodFIFO, "")
	require.NoError(t, err)
	assert.True(t, cogs.TotalCost.Equal(d("1240")))

	// La simulación no debe haber tocado el stock
	stock, err := val.CurrentStock(context.Background(), org, "widget")
	require.NoError(t, err)
	assert.True(t, stock.Equal(d("150")), "ComputeCOGS es de solo lectura")
}

func TestComputeCOGS_MetodoVigentePorDefecto(t *testing.T) {
	val, uc, store := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)
	purchase(t, uc, "widget", "50", "12", day0.AddDate(0, 0, 1))

	require.NoError(t, store.Upsert(&entity.CostingMethod{
		OrgID: org, ItemID: "widget", Method: entity.MethodLIFO, EffectiveFrom: day0,
	}))

	cogs, err := val.ComputeCOGS(context.Background(), org, "widget", d("30"), "", "")
	require.NoError(t, err)
	assert.True(t, cogs.TotalCost.Equal(d("360")), "método vacío debe resolver al configurado (LIFO)")
}

func TestComputeCOGS_Insuficiente(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "10", "10", day0)

	_, err := val.ComputeCOGS(context.Background(), org, "widget", d("20"), entity.MethodFIFO, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

// ── Chequeo de consistencia ──────────────────────────────────────────────────

func TestCheckConsistency(t *testing.T) {
	val, uc, _ := seed(t)
	purchase(t, uc, "widget", "100", "10", day0)

	assert.NoError(t, val.CheckConsistency(context.Background(), org, "widget"))
}

// TestCheckConsistency_DetectaDivergencia: una capa sembrada sin su asiento de
// ledger rompe la conservación y debe detectarse.
func TestCheckConsistency_DetectaDivergencia(t *testing.T) {
	val, _, store := seed(t)

	layer, err := entity.NewCostLayer(org, "widget", day0, entity.LayerSourcePURCHASE,
		entity.LayerRef{}, d("10"), d("5"))
	require.NoError(t, err)
	require.NoError(t, store.Create(layer))

	err = val.CheckConsistency(context.Background(), org, "widget")
	assert.ErrorIs(t, err, domain.ErrInconsistency)
}

// TestCheckConsistency_ContrasteDeValor: con cantidades iguales pero valor del
// ledger divergente del de capas, el contraste de promedios lo detecta (bajo
// métodos que consumen al costo de capa).
func TestCheckConsistency_ContrasteDeValor(t *testing.T) {
	val, _, store := seed(t)

	layer, err := entity.NewCostLayer(org, "widget", day0, entity.LayerSourcePURCHASE,
		entity.LayerRef{}, d("10"), d("5"))
	require.NoError(t, err)
	require.NoError(t, store.Run(context.Background(), func(
		lr repository.CostLayerRepository,
		ledger repository.LedgerRepository,
		_ repository.CostingMethodRepository,
	) error {
		if err := lr.Create(layer); err != nil {
			return err
		}
		// Asiento con la cantidad correcta pero el valor inflado
		return ledger.Append(&entity.LedgerEntry{
			OrgID: org, ItemID: "widget", Date: day0,
			Movement: entity.MovementPURCHASE,
			QtyDelta: d("10"), UnitCost: d("6"), TotalCostDelta: d("60"),
			RunningQty: d("10"), RunningValue: d("60"), RunningAvgCost: d("6"),
		})
	}))

	err = val.CheckConsistency(context.Background(), org, "widget")
	assert.ErrorIs(t, err, domain.ErrInconsistency,
		"promedio de capas 5 contra promedio del ledger 6 debe detectarse")
}

// TestCheckConsistency_PromedioPonderadoSoloCantidad: bajo promedio ponderado
// el valor del ledger diverge del de capas con ventas de por medio; solo la
// cantidad debe contrastarse.
func TestCheckConsistency_PromedioPonderadoSoloCantidad(t *testing.T) {
	val, uc, store := seed(t)
	require.NoError(t, store.Upsert(&entity.CostingMethod{
		OrgID: org, ItemID: "widget", Method: entity.MethodWeightedAverage, EffectiveFrom: day0,
	}))

	purchase(t, uc, "widget", "100", "10", day0)
	purchase(t, uc, "widget", "50", "16", day0.AddDate(0, 0, 1))
	_, err := uc.PostSale(context.Background(), engine.SaleInput{
		OrgID: org, ItemID: "widget", Qty: d("120"), UnitPrice: d("25"), SellerState: "27",
	})
	require.NoError(t, err)

	assert.NoError(t, val.CheckConsistency(context.Background(), org, "widget"))
}
