package repository

import (
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain/entity"
)

// CostingMethodRepository define el puerto de configuración de métodos de
// costeo. A lo sumo una fila default (ItemID vacío) por organización y una por
// (org, ítem); Upsert reemplaza la vigente.
type CostingMethodRepository interface {
	Upsert(method *entity.CostingMethod) error
	// Get configuración exacta para (org, ítem); ItemID vacío = default.
	// nil, nil si no existe.
	Get(orgID, itemID string) (*entity.CostingMethod, error)
	// Resolve método vigente para un ítem a la fecha dada: primero la fila
	// del ítem, si no la default de la organización; nil, nil si ninguna.
	Resolve(orgID, itemID string, at time.Time) (*entity.CostingMethod, error)
}
