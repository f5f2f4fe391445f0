// Package valuation es el lado de lectura del motor: stock actual, costo
// promedio, reportes de valoración y cálculo de COGS sin efectos. Nunca muta
// capas ni ledger; es seguro llamarlo concurrente con escrituras (lee
// snapshots eventualmente consistentes del almacén).
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/costing"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// UseCase servicio de valoración. Recibe repositorios atados al pool (solo
// lectura, sin transacción): el COGS que alimenta una venta real NO sale de
// aquí sino de la sección crítica del motor.
type UseCase struct {
	layerRepo     repository.CostLayerRepository
	ledgerRepo    repository.LedgerRepository
	methodRepo    repository.CostingMethodRepository
	defaultMethod entity.Method
}

// NewUseCase construye el servicio de valoración.
func NewUseCase(
	layerRepo repository.CostLayerRepository,
	ledgerRepo repository.LedgerRepository,
	methodRepo repository.CostingMethodRepository,
	defaultMethod entity.Method,
) *UseCase {
	if defaultMethod == "" {
		defaultMethod = entity.MethodFIFO
	}
	return &UseCase{
		layerRepo:     layerRepo,
		ledgerRepo:    ledgerRepo,
		methodRepo:    methodRepo,
		defaultMethod: defaultMethod,
	}
}

// CurrentStock suma el remanente de las capas activas del ítem.
func (uc *UseCase) CurrentStock(ctx context.Context, orgID, itemID string) (decimal.Decimal, error) {
	layers, err := uc.layerRepo.ActiveByItem(orgID, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range layers {
		total = total.Add(l.QtyRemaining)
	}
	return total, nil
}

// AverageCost costo promedio corrido de la última entrada del ledger; cero
// sin movimientos.
func (uc *UseCase) AverageCost(ctx context.Context, orgID, itemID string) (decimal.Decimal, error) {
	last, err := uc.ledgerRepo.LastByItem(orgID, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	if last == nil {
		return decimal.Zero, nil
	}
	return last.RunningAvgCost, nil
}

// Snapshot valoración puntual de un ítem: stock, promedio, valor total y la
// última compra (costo y fecha).
func (uc *UseCase) Snapshot(ctx context.Context, orgID, itemID string) (*entity.ValuationSnapshot, error) {
	if orgID == "" || itemID == "" {
		return nil, domain.ErrInvalidInput
	}
	last, err := uc.ledgerRepo.LastByItem(orgID, itemID)
	if err != nil {
		return nil, err
	}
	snap := &entity.ValuationSnapshot{ItemID: itemID}
	if last != nil {
		snap.CurrentStock = last.RunningQty
		snap.AverageCost = last.RunningAvgCost
		snap.TotalValue = last.RunningValue
	}

	layers, err := uc.layerRepo.AllByItem(orgID, itemID)
	if err != nil {
		return nil, err
	}
	for _, l := range layers {
		if l.Source != entity.LayerSourcePURCHASE {
			continue
		}
		if snap.LastPurchaseDate == nil || l.Date.After(*snap.LastPurchaseDate) {
			d := l.Date
			snap.LastPurchaseDate = &d
			snap.LastPurchaseCost = l.UnitCost
		}
	}
	return snap, nil
}

// Report valoración agregada de la organización a la fecha asOf (nil = ahora).
// Solo lectura, sin efectos; dos llamadas sin escrituras intermedias devuelven
// exactamente lo mismo.
func (uc *UseCase) Report(ctx context.Context, orgID string, asOf *time.Time) (*entity.ValuationReport, error) {
	if orgID == "" {
		return nil, domain.ErrInvalidInput
	}
	latest, err := uc.ledgerRepo.LatestPerItem(orgID, asOf)
	if err != nil {
		return nil, err
	}
	purchases, err := uc.ledgerRepo.LastPurchasePerItem(orgID, asOf)
	if err != nil {
		return nil, err
	}
	lastPurchase := make(map[string]*entity.LedgerEntry, len(purchases))
	for _, p := range purchases {
		lastPurchase[p.ItemID] = p
	}

	report := &entity.ValuationReport{OrgID: orgID, AsOf: time.Now()}
	if asOf != nil {
		report.AsOf = *asOf
	}
	report.TotalQuantity = decimal.Zero
	report.TotalValue = decimal.Zero
	for _, e := range latest {
		snap := entity.ValuationSnapshot{
			ItemID:       e.ItemID,
			CurrentStock: e.RunningQty,
			AverageCost:  e.RunningAvgCost,
			TotalValue:   e.RunningValue,
		}
		if p, ok := lastPurchase[e.ItemID]; ok {
			d := p.Date
			snap.LastPurchaseDate = &d
			snap.LastPurchaseCost = p.UnitCost
		}
		report.Items = append(report.Items, snap)
		report.TotalQuantity = report.TotalQuantity.Add(snap.CurrentStock)
		report.TotalValue = report.TotalValue.Add(snap.TotalValue)
	}
	return report, nil
}

// Ledger historial de movimientos del ítem en orden de reproducción, con
// rango de fechas y paginado opcionales.
func (uc *UseCase) Ledger(ctx context.Context, orgID, itemID string, from, to *time.Time, limit, offset int) ([]*entity.LedgerEntry, error) {
	if orgID == "" || itemID == "" {
		return nil, domain.ErrInvalidInput
	}
	return uc.ledgerRepo.ListByItem(orgID, itemID, from, to, limit, offset)
}

// ComputeCOGS calcula el costo de vender qty unidades con el método dado, sin
// consumir nada (simulación de solo lectura). method vacío = método vigente
// del ítem. Propaga ErrInsufficientStock del estratega.
func (uc *UseCase) ComputeCOGS(ctx context.Context, orgID, itemID string, qty decimal.Decimal, method entity.Method, layerID string) (costing.COGS, error) {
	if orgID == "" || itemID == "" {
		return costing.COGS{}, domain.ErrInvalidInput
	}
	if method == "" {
		cfg, err := uc.methodRepo.Resolve(orgID, itemID, time.Now())
		if err != nil {
			return costing.COGS{}, err
		}
		method = uc.defaultMethod
		if cfg != nil {
			method = cfg.Method
		}
	}
	layers, err := uc.layerRepo.ActiveByItem(orgID, itemID)
	if err != nil {
		return costing.COGS{}, err
	}
	opts := costing.Options{LayerID: layerID}
	if method == entity.MethodWeightedAverage {
		avg, err := uc.AverageCost(ctx, orgID, itemID)
		if err != nil {
			return costing.COGS{}, err
		}
		opts.AverageCost = avg
	}
	consumptions, err := costing.SelectConsumption(itemID, layers, qty, method, opts)
	if err != nil {
		return costing.COGS{}, err
	}
	return costing.BuildCOGS(qty, consumptions), nil
}

// CheckConsistency verifica la invariante de conservación del ítem: la suma
// del remanente de capas debe igualar el RunningQty de la última entrada del
// ledger. Para métodos que consumen al costo de capa (todos menos promedio
// ponderado) contrasta además el promedio del remanente de capas contra el
// promedio corrido del ledger; bajo promedio ponderado el valor del ledger
// diverge del de capas y el contraste no aplica. Una discrepancia es un bug
// detectable, no un estado corregible. Pensado como utilidad de tests y de
// diagnóstico.
func (uc *UseCase) CheckConsistency(ctx context.Context, orgID, itemID string) error {
	layers, err := uc.layerRepo.ActiveByItem(orgID, itemID)
	if err != nil {
		return err
	}
	layerQty := decimal.Zero
	for _, l := range layers {
		layerQty = layerQty.Add(l.QtyRemaining)
	}
	last, err := uc.ledgerRepo.LastByItem(orgID, itemID)
	if err != nil {
		return err
	}
	ledgerQty := decimal.Zero
	if last != nil {
		ledgerQty = last.RunningQty
	}
	if !layerQty.Equal(ledgerQty) {
		return fmt.Errorf("%w: ítem %s, capas=%s ledger=%s",
			domain.ErrInconsistency, itemID, layerQty, ledgerQty)
	}
	if last == nil || !layerQty.GreaterThan(decimal.Zero) {
		return nil
	}

	method := uc.defaultMethod
	cfg, err := uc.methodRepo.Resolve(orgID, itemID, time.Now())
	if err != nil {
		return err
	}
	if cfg != nil {
		method = cfg.Method
	}
	if method == entity.MethodWeightedAverage {
		return nil
	}
	layerAvg := costing.AverageOfLayers(layers)
	if !layerAvg.Equal(last.RunningAvgCost) {
		return fmt.Errorf("%w: ítem %s, promedio capas=%s ledger=%s",
			domain.ErrInconsistency, itemID, layerAvg, last.RunningAvgCost)
	}
	return nil
}
