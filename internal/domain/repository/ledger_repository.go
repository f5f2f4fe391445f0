package repository

import (
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain/entity"
)

// LedgerRepository define el puerto de persistencia del ledger de stock.
// El ledger es append-only: no hay Update ni Delete; las correcciones entran
// como nuevas entradas ADJUSTMENT.
type LedgerRepository interface {
	// Append persiste una entrada asignando ID y Seq monotónico por (org, ítem).
	Append(entry *entity.LedgerEntry) error
	// LastByItem última entrada del ítem por (fecha, Seq); nil, nil si no hay.
	LastByItem(orgID, itemID string) (*entity.LedgerEntry, error)
	// ListByItem entradas de un ítem en un rango de fechas, orden de reproducción.
	ListByItem(orgID, itemID string, from, to *time.Time, limit, offset int) ([]*entity.LedgerEntry, error)
	// LatestPerItem última entrada de cada ítem de la organización a la fecha
	// asOf (nil = ahora). Base del reporte de valoración.
	LatestPerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error)
	// LastPurchasePerItem última entrada PURCHASE de cada ítem a la fecha asOf.
	LastPurchasePerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error)
}
