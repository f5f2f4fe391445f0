package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/costing"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
	"github.com/jhoicas/Costeo-api/internal/domain/tax"
	"github.com/jhoicas/Costeo-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// EngineUseCase es la frontera de operación del motor de valoración: compras,
// ventas, ajustes y saldos iniciales. Toda escritura serializa por
// (org, ítem) vía ItemLocker y corre dentro de una transacción del TxRunner:
// seleccionar capas → consumir → asentar en el ledger es atómico y nunca se
// observa un consumo parcial sin su entrada de ledger.
type EngineUseCase struct {
	txRunner      TxRunner
	locker        ItemLocker
	defaultMethod entity.Method
	lockTimeout   time.Duration
	log           *logger.Logger
}

// Config parámetros del motor.
type Config struct {
	// DefaultMethod método de costeo si la organización no configuró ninguno.
	DefaultMethod entity.Method
	// LockTimeout espera máxima por la sección crítica de un ítem antes de
	// fallar con ErrBusy (reintentable). Evita colas sin límite en ítems
	// calientes.
	LockTimeout time.Duration
}

// NewEngineUseCase construye el caso de uso.
func NewEngineUseCase(txRunner TxRunner, locker ItemLocker, cfg Config, log *logger.Logger) *EngineUseCase {
	if cfg.DefaultMethod == "" {
		cfg.DefaultMethod = entity.MethodFIFO
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 3 * time.Second
	}
	return &EngineUseCase{
		txRunner:      txRunner,
		locker:        locker,
		defaultMethod: cfg.DefaultMethod,
		lockTimeout:   cfg.LockTimeout,
		log:           log,
	}
}

// PurchaseInput entrada para registrar una recepción de compra.
type PurchaseInput struct {
	OrgID    string
	ItemID   string
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	Ref      entity.LayerRef
	Date     time.Time // cero = ahora
	Note     string
}

// SaleInput entrada para registrar una venta.
// LayerID no vacío fuerza identificación específica sobre esa capa.
type SaleInput struct {
	OrgID       string
	ItemID      string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal // 0..100, sobre el subtotal antes de impuesto
	TaxRate     decimal.Decimal // porcentaje GST
	SellerState string
	BuyerState  string // vacío = misma jurisdicción del vendedor
	LayerID     string
	Ref         string
	Date        time.Time
	Note        string
}

// SaleResult entrada de ledger, COGS y partición de impuestos de la venta.
type SaleResult struct {
	Entry *entity.LedgerEntry
	COGS  costing.COGS
	Tax   tax.Split
}

// AdjustmentInput entrada para un ajuste con signo: positivo crea capa,
// negativo consume capas según el método vigente.
type AdjustmentInput struct {
	OrgID    string
	ItemID   string
	Qty      decimal.Decimal  // con signo, distinto de cero
	UnitCost *decimal.Decimal // solo ajustes positivos; nil = costo cero
	Reason   string
	Date     time.Time
}

// OpeningInput entrada para el saldo inicial de un ítem.
type OpeningInput struct {
	OrgID    string
	ItemID   string
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	Date     time.Time
	Note     string
}

// PostPurchase crea una capa de costo nueva y asienta la entrada PURCHASE.
func (uc *EngineUseCase) PostPurchase(ctx context.Context, in PurchaseInput) (*entity.LedgerEntry, error) {
	if in.OrgID == "" || in.ItemID == "" {
		return nil, domain.ErrInvalidInput
	}
	date := orNow(in.Date)
	layer, err := entity.NewCostLayer(in.OrgID, in.ItemID, date, entity.LayerSourcePURCHASE, in.Ref, in.Qty, in.UnitCost)
	if err != nil {
		return nil, err
	}

	release, err := uc.acquire(ctx, in.OrgID, in.ItemID)
	if err != nil {
		return nil, err
	}
	defer release()

	var entry *entity.LedgerEntry
	err = uc.txRunner.Run(ctx, func(
		layerRepo repository.CostLayerRepository,
		ledgerRepo repository.LedgerRepository,
		_ repository.CostingMethodRepository,
	) error {
		if err := layerRepo.Create(layer); err != nil {
			return err
		}
		entry = &entity.LedgerEntry{
			OrgID:          in.OrgID,
			ItemID:         in.ItemID,
			Date:           date,
			Movement:       entity.MovementPURCHASE,
			QtyDelta:       in.Qty,
			UnitCost:       in.UnitCost,
			TotalCostDelta: in.Qty.Mul(in.UnitCost),
			Note:           in.Note,
			Ref:            in.Ref.ReceiptID,
			CreatedAt:      time.Now(),
		}
		return uc.appendEntry(ledgerRepo, entry)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Debug().Str("org", in.OrgID).Str("item", in.ItemID).
		Str("qty", in.Qty.String()).Str("unit_cost", in.UnitCost.String()).
		Msg("compra asentada")
	return entry, nil
}

// PostSale consume capas según el método vigente, asienta la entrada SALE y
// calcula la partición de impuestos de la venta. El COGS de promedio
// ponderado se toma dentro de la misma sección crítica que la escritura.
func (uc *EngineUseCase) PostSale(ctx context.Context, in SaleInput) (*SaleResult, error) {
	if in.OrgID == "" || in.ItemID == "" || in.SellerState == "" {
		return nil, domain.ErrInvalidInput
	}
	if !in.Qty.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidQuantity
	}
	if in.UnitPrice.LessThan(decimal.Zero) {
		return nil, domain.ErrInvalidCost
	}
	if in.DiscountPct.LessThan(decimal.Zero) || in.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.ErrInvalidInput
	}
	date := orNow(in.Date)

	release, err := uc.acquire(ctx, in.OrgID, in.ItemID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result SaleResult
	err = uc.txRunner.Run(ctx, func(
		layerRepo repository.CostLayerRepository,
		ledgerRepo repository.LedgerRepository,
		methodRepo repository.CostingMethodRepository,
	) error {
		method, err := uc.resolveMethod(methodRepo, in.OrgID, in.ItemID, date)
		if err != nil {
			return err
		}
		if in.LayerID != "" {
			method = entity.MethodSpecificID
		}
		cogs, err := uc.consume(layerRepo, ledgerRepo, in.OrgID, in.ItemID, in.Qty, method, in.LayerID)
		if err != nil {
			return err
		}
		entry := &entity.LedgerEntry{
			OrgID:          in.OrgID,
			ItemID:         in.ItemID,
			Date:           date,
			Movement:       entity.MovementSALE,
			QtyDelta:       in.Qty.Neg(),
			UnitCost:       cogs.AverageUnitCost,
			TotalCostDelta: cogs.TotalCost.Neg(),
			Note:           in.Note,
			Ref:            in.Ref,
			CreatedAt:      time.Now(),
		}
		if err := uc.appendEntry(ledgerRepo, entry); err != nil {
			return err
		}
		split, err := tax.Compute(saleSubtotal(in.Qty, in.UnitPrice, in.DiscountPct), in.TaxRate, in.SellerState, in.BuyerState)
		if err != nil {
			return err
		}
		result = SaleResult{Entry: entry, COGS: cogs, Tax: split}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Debug().Str("org", in.OrgID).Str("item", in.ItemID).
		Str("qty", in.Qty.String()).Str("cogs", result.COGS.TotalCost.String()).
		Msg("venta asentada")
	return &result, nil
}

// PostAdjustment asienta un ajuste con signo. Positivo entra como capa nueva
// (fuente ADJUSTMENT); negativo consume capas con el método vigente.
func (uc *EngineUseCase) PostAdjustment(ctx context.Context, in AdjustmentInput) (*entity.LedgerEntry, error) {
	if in.OrgID == "" || in.ItemID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Qty.IsZero() {
		return nil, domain.ErrInvalidQuantity
	}
	date := orNow(in.Date)

	release, err := uc.acquire(ctx, in.OrgID, in.ItemID)
	if err != nil {
		return nil, err
	}
	defer release()

	var entry *entity.LedgerEntry
	err = uc.txRunner.Run(ctx, func(
		layerRepo repository.CostLayerRepository,
		ledgerRepo repository.LedgerRepository,
		methodRepo repository.CostingMethodRepository,
	) error {
		if in.Qty.GreaterThan(decimal.Zero) {
			unitCost := decimal.Zero
			if in.UnitCost != nil {
				unitCost = *in.UnitCost
			}
			layer, err := entity.NewCostLayer(in.OrgID, in.ItemID, date, entity.LayerSourceADJUSTMENT, entity.LayerRef{}, in.Qty, unitCost)
			if err != nil {
				return err
			}
			if err := layerRepo.Create(layer); err != nil {
				return err
			}
			entry = &entity.LedgerEntry{
				OrgID:          in.OrgID,
				ItemID:         in.ItemID,
				Date:           date,
				Movement:       entity.MovementADJUSTMENT,
				QtyDelta:       in.Qty,
				UnitCost:       unitCost,
				TotalCostDelta: in.Qty.Mul(unitCost),
				Note:           in.Reason,
				CreatedAt:      time.Now(),
			}
			return uc.appendEntry(ledgerRepo, entry)
		}

		qtyOut := in.Qty.Neg()
		method, err := uc.resolveMethod(methodRepo, in.OrgID, in.ItemID, date)
		if err != nil {
			return err
		}
		cogs, err := uc.consume(layerRepo, ledgerRepo, in.OrgID, in.ItemID, qtyOut, method, "")
		if err != nil {
			return err
		}
		entry = &entity.LedgerEntry{
			OrgID:          in.OrgID,
			ItemID:         in.ItemID,
			Date:           date,
			Movement:       entity.MovementADJUSTMENT,
			QtyDelta:       in.Qty,
			UnitCost:       cogs.AverageUnitCost,
			TotalCostDelta: cogs.TotalCost.Neg(),
			Note:           in.Reason,
			CreatedAt:      time.Now(),
		}
		return uc.appendEntry(ledgerRepo, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostOpening asienta el saldo inicial de un ítem. Solo procede con el ledger
// del ítem vacío: un opening sobre un ítem con historia es ErrInvalidInput.
func (uc *EngineUseCase) PostOpening(ctx context.Context, in OpeningInput) (*entity.LedgerEntry, error) {
	if in.OrgID == "" || in.ItemID == "" {
		return nil, domain.ErrInvalidInput
	}
	date := orNow(in.Date)
	layer, err := entity.NewCostLayer(in.OrgID, in.ItemID, date, entity.LayerSourceOPENING, entity.LayerRef{}, in.Qty, in.UnitCost)
	if err != nil {
		return nil, err
	}

	release, err := uc.acquire(ctx, in.OrgID, in.ItemID)
	if err != nil {
		return nil, err
	}
	defer release()

	var entry *entity.LedgerEntry
	err = uc.txRunner.Run(ctx, func(
		layerRepo repository.CostLayerRepository,
		ledgerRepo repository.LedgerRepository,
		_ repository.CostingMethodRepository,
	) error {
		last, err := ledgerRepo.LastByItem(in.OrgID, in.ItemID)
		if err != nil {
			return err
		}
		if last != nil {
			return fmt.Errorf("%w: el ítem %s ya tiene movimientos", domain.ErrInvalidInput, in.ItemID)
		}
		if err := layerRepo.Create(layer); err != nil {
			return err
		}
		entry = &entity.LedgerEntry{
			OrgID:          in.OrgID,
			ItemID:         in.ItemID,
			Date:           date,
			Movement:       entity.MovementOPENING,
			QtyDelta:       in.Qty,
			UnitCost:       in.UnitCost,
			TotalCostDelta: in.Qty.Mul(in.UnitCost),
			Note:           in.Note,
			CreatedAt:      time.Now(),
		}
		return uc.appendEntry(ledgerRepo, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SetCostingMethod configura el método de costeo del ítem, o el default de la
// organización si itemID va vacío. Upsert: reemplaza la configuración vigente.
func (uc *EngineUseCase) SetCostingMethod(ctx context.Context, orgID, itemID, method string, effectiveFrom time.Time) (*entity.CostingMethod, error) {
	if orgID == "" {
		return nil, domain.ErrInvalidInput
	}
	parsed, err := entity.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	cfg := &entity.CostingMethod{
		OrgID:         orgID,
		ItemID:        itemID,
		Method:        parsed,
		EffectiveFrom: orNow(effectiveFrom),
		UpdatedAt:     time.Now(),
	}
	err = uc.txRunner.Run(ctx, func(
		_ repository.CostLayerRepository,
		_ repository.LedgerRepository,
		methodRepo repository.CostingMethodRepository,
	) error {
		return methodRepo.Upsert(cfg)
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// acquire toma la sección crítica del ítem con la espera máxima configurada.
func (uc *EngineUseCase) acquire(ctx context.Context, orgID, itemID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, uc.lockTimeout)
	defer cancel()
	return uc.locker.Acquire(lockCtx, orgID+":"+itemID)
}

// resolveMethod método vigente para el ítem: fila del ítem, si no la default
// de la organización, si no el default del motor.
func (uc *EngineUseCase) resolveMethod(methodRepo repository.CostingMethodRepository, orgID, itemID string, at time.Time) (entity.Method, error) {
	cfg, err := methodRepo.Resolve(orgID, itemID, at)
	if err != nil {
		return "", err
	}
	if cfg == nil {
		return uc.defaultMethod, nil
	}
	return cfg.Method, nil
}

// consume selecciona capas con el método dado, descuenta QtyRemaining de cada
// una y devuelve el COGS. Debe llamarse con la sección crítica del ítem
// tomada y dentro de la transacción del TxRunner.
func (uc *EngineUseCase) consume(
	layerRepo repository.CostLayerRepository,
	ledgerRepo repository.LedgerRepository,
	orgID, itemID string,
	qty decimal.Decimal,
	method entity.Method,
	layerID string,
) (costing.COGS, error) {
	layers, err := layerRepo.ActiveByItem(orgID, itemID)
	if err != nil {
		return costing.COGS{}, err
	}
	opts := costing.Options{LayerID: layerID}
	if method == entity.MethodWeightedAverage {
		last, err := ledgerRepo.LastByItem(orgID, itemID)
		if err != nil {
			return costing.COGS{}, err
		}
		if last != nil {
			opts.AverageCost = last.RunningAvgCost
		}
	}
	consumptions, err := costing.SelectConsumption(itemID, layers, qty, method, opts)
	if err != nil {
		return costing.COGS{}, err
	}

	byID := make(map[string]*entity.CostLayer, len(layers))
	for _, l := range layers {
		byID[l.ID] = l
	}
	for _, c := range consumptions {
		layer, ok := byID[c.LayerID]
		if !ok {
			return costing.COGS{}, domain.ErrNotFound
		}
		if err := layer.Consume(c.Qty); err != nil {
			return costing.COGS{}, err
		}
		if err := layerRepo.UpdateRemaining(layer); err != nil {
			return costing.COGS{}, err
		}
	}
	return costing.BuildCOGS(qty, consumptions), nil
}

// appendEntry calcula la terna corrida desde la entrada anterior del ítem y
// persiste. Un movimiento con fecha anterior a la última entrada se rechaza:
// la terna corrida se acumula sobre la entrada más nueva, y un asiento
// retrofechado nunca volvería a ser "el último", así que su delta se perdería
// de todas las ternas siguientes. Revalida stock negativo como última línea
// de defensa: el estratega ya debió rechazar con ErrInsufficientStock, así
// que llegar aquí en negativo es un bug de consistencia que se loguea y
// aborta la operación.
func (uc *EngineUseCase) appendEntry(ledgerRepo repository.LedgerRepository, e *entity.LedgerEntry) error {
	prev, err := ledgerRepo.LastByItem(e.OrgID, e.ItemID)
	if err != nil {
		return err
	}
	prevQty, prevValue := decimal.Zero, decimal.Zero
	if prev != nil {
		if e.Date.Before(prev.Date) {
			return fmt.Errorf("%w: ítem %s, movimiento %s contra último asiento %s",
				domain.ErrBackdatedEntry, e.ItemID, e.Date.Format(time.RFC3339), prev.Date.Format(time.RFC3339))
		}
		prevQty = prev.RunningQty
		prevValue = prev.RunningValue
	}
	e.RunningQty = prevQty.Add(e.QtyDelta)
	if e.RunningQty.IsNegative() {
		uc.log.Error().Str("org", e.OrgID).Str("item", e.ItemID).
			Str("running_qty", e.RunningQty.String()).Str("movement", e.Movement).
			Msg("el asiento dejaría stock negativo; operación abortada")
		return fmt.Errorf("%w: ítem %s quedaría en %s", domain.ErrNegativeStock, e.ItemID, e.RunningQty)
	}
	e.RunningValue = prevValue.Add(e.TotalCostDelta)
	e.RunningAvgCost = entity.RunningAverage(e.RunningQty, e.RunningValue)
	return ledgerRepo.Append(e)
}

// saleSubtotal subtotal gravable: qty * precio * (1 - descuento/100).
func saleSubtotal(qty, unitPrice, discountPct decimal.Decimal) decimal.Decimal {
	gross := qty.Mul(unitPrice)
	if discountPct.IsZero() {
		return gross
	}
	factor := decimal.NewFromInt(1).Sub(discountPct.Div(decimal.NewFromInt(100)))
	return gross.Mul(factor)
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
