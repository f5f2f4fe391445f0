package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento del ledger de stock.
const (
	MovementPURCHASE   = "PURCHASE"   // recepción de compra
	MovementSALE       = "SALE"       // venta
	MovementADJUSTMENT = "ADJUSTMENT" // ajuste (positivo o negativo)
	MovementTRANSFER   = "TRANSFER"   // traslado
	MovementOPENING    = "OPENING"    // saldo inicial
)

// LedgerEntry registro inmutable de un movimiento de stock de un ítem.
// Las entradas son append-only: las correcciones son nuevas entradas de tipo
// ADJUSTMENT, nunca ediciones. Seq es monotónico por (org, ítem) y define el
// orden de reproducción junto con Date.
type LedgerEntry struct {
	ID             string
	OrgID          string
	ItemID         string
	Seq            int64
	Date           time.Time
	Movement       string
	QtyDelta       decimal.Decimal // con signo: positivo entra, negativo sale
	UnitCost       decimal.Decimal // costo unitario aplicado al movimiento
	TotalCostDelta decimal.Decimal // QtyDelta * UnitCost (o suma de capas en ventas FIFO/LIFO)
	RunningQty     decimal.Decimal
	RunningValue   decimal.Decimal
	RunningAvgCost decimal.Decimal // RunningValue / RunningQty; 0 con stock en cero
	Note           string
	Ref            string
	CreatedAt      time.Time
}

// RunningAverage calcula el costo promedio corrido para un par cantidad/valor.
// Con cantidad cero (o negativa, que el ledger rechaza antes) devuelve cero.
func RunningAverage(runningQty, runningValue decimal.Decimal) decimal.Decimal {
	if !runningQty.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	return runningValue.Div(runningQty)
}
