package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationSnapshot foto derivada (no persistida) de la valoración de un ítem.
// CurrentStock debe coincidir con el RunningQty de la última entrada del
// ledger; la discrepancia es un bug detectable (ver valuation.CheckConsistency).
type ValuationSnapshot struct {
	ItemID           string
	CurrentStock     decimal.Decimal
	AverageCost      decimal.Decimal
	TotalValue       decimal.Decimal
	LastPurchaseCost decimal.Decimal
	LastPurchaseDate *time.Time
}

// ValuationReport agregado de valoración por organización.
type ValuationReport struct {
	OrgID         string
	AsOf          time.Time
	Items         []ValuationSnapshot
	TotalQuantity decimal.Decimal
	TotalValue    decimal.Decimal
}
