package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound             = errors.New("recurso no encontrado")
	ErrInvalidInput         = errors.New("entrada inválida")
	ErrInvalidQuantity      = errors.New("cantidad inválida")
	ErrInvalidCost          = errors.New("costo unitario inválido")
	ErrInsufficientStock    = errors.New("stock insuficiente")
	ErrInsufficientLayer    = errors.New("cantidad insuficiente en la capa de costo")
	ErrNegativeStock        = errors.New("stock negativo: inconsistencia interna del ledger")
	ErrBusy                 = errors.New("ítem ocupado: no se obtuvo la sección crítica a tiempo")
	ErrUnknownCostingMethod = errors.New("método de costeo desconocido")
	ErrBackdatedEntry       = errors.New("fecha anterior al último movimiento del ítem")
	ErrInconsistency        = errors.New("inconsistencia capas/ledger detectada")
)

// StockShortageError detalla un rechazo por falta de stock: qué ítem, cuánto se
// pidió y cuánto había disponible. Envuelve ErrInsufficientStock o
// ErrInsufficientLayer para que errors.Is siga funcionando en los handlers.
type StockShortageError struct {
	ItemID    string
	LayerID   string // vacío salvo identificación específica
	Requested decimal.Decimal
	Available decimal.Decimal
	sentinel  error
}

// NewStockShortage construye el error por falta de stock total de un ítem.
func NewStockShortage(itemID string, requested, available decimal.Decimal) *StockShortageError {
	return &StockShortageError{ItemID: itemID, Requested: requested, Available: available, sentinel: ErrInsufficientStock}
}

// NewLayerShortage construye el error por falta de cantidad en una capa concreta.
func NewLayerShortage(itemID, layerID string, requested, available decimal.Decimal) *StockShortageError {
	return &StockShortageError{ItemID: itemID, LayerID: layerID, Requested: requested, Available: available, sentinel: ErrInsufficientLayer}
}

func (e *StockShortageError) Error() string {
	if e.LayerID != "" {
		return fmt.Sprintf("%s: ítem %s capa %s (solicitado %s, disponible %s)",
			e.sentinel, e.ItemID, e.LayerID, e.Requested, e.Available)
	}
	return fmt.Sprintf("%s: ítem %s (solicitado %s, disponible %s)", e.sentinel, e.ItemID, e.Requested, e.Available)
}

// Unwrap permite errors.Is(err, domain.ErrInsufficientStock).
func (e *StockShortageError) Unwrap() error { return e.sentinel }
