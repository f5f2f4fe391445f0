package entity

import (
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/shopspring/decimal"
)

// Orígenes de una capa de costo.
const (
	LayerSourcePURCHASE   = "PURCHASE"   // recepción de compra
	LayerSourceADJUSTMENT = "ADJUSTMENT" // ajuste positivo
	LayerSourceOPENING    = "OPENING"    // saldo inicial
)

// LayerRef referencias opcionales de la recepción que creó la capa
// (recibo, proveedor, lote, vencimiento). Todo puede ir vacío.
type LayerRef struct {
	ReceiptID  string
	SupplierID string
	Batch      string
	Expiry     *time.Time
}

// CostLayer representa una recepción de stock a un costo unitario específico.
// QtyRemaining solo baja por consumo; al llegar a cero la capa queda inactiva
// pero nunca se borra (auditoría).
type CostLayer struct {
	ID           string
	OrgID        string
	ItemID       string
	Date         time.Time
	Source       string
	Ref          LayerRef
	QtyReceived  decimal.Decimal
	QtyRemaining decimal.Decimal
	UnitCost     decimal.Decimal
	TotalCost    decimal.Decimal // QtyReceived * UnitCost, fijado al crear
	Seq          int64           // orden de creación por ítem; desempate FIFO/LIFO
	CreatedAt    time.Time
}

// NewCostLayer valida y construye una capa. La cantidad debe ser > 0 y el
// costo unitario >= 0; se rechaza antes de tocar estado.
func NewCostLayer(orgID, itemID string, date time.Time, source string, ref LayerRef, qty, unitCost decimal.Decimal) (*CostLayer, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidQuantity
	}
	if unitCost.LessThan(decimal.Zero) {
		return nil, domain.ErrInvalidCost
	}
	switch source {
	case LayerSourcePURCHASE, LayerSourceADJUSTMENT, LayerSourceOPENING:
	default:
		return nil, domain.ErrInvalidInput
	}
	return &CostLayer{
		OrgID:        orgID,
		ItemID:       itemID,
		Date:         date,
		Source:       source,
		Ref:          ref,
		QtyReceived:  qty,
		QtyRemaining: qty,
		UnitCost:     unitCost,
		TotalCost:    qty.Mul(unitCost),
	}, nil
}

// Active indica si la capa todavía participa en la selección de consumo.
func (l *CostLayer) Active() bool {
	return l.QtyRemaining.GreaterThan(decimal.Zero)
}

// Consume descuenta qty de QtyRemaining. Nunca deja la capa en negativo:
// si qty excede lo disponible retorna ErrInsufficientLayer sin mutar nada.
func (l *CostLayer) Consume(qty decimal.Decimal) error {
	if !qty.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidQuantity
	}
	if qty.GreaterThan(l.QtyRemaining) {
		return domain.NewLayerShortage(l.ItemID, l.ID, qty, l.QtyRemaining)
	}
	l.QtyRemaining = l.QtyRemaining.Sub(qty)
	return nil
}

// RemainingValue valor residual de la capa (QtyRemaining * UnitCost).
func (l *CostLayer) RemainingValue() decimal.Decimal {
	return l.QtyRemaining.Mul(l.UnitCost)
}
