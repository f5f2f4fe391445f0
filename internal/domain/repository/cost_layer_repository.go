package repository

import "github.com/jhoicas/Costeo-api/internal/domain/entity"

// CostLayerRepository define el puerto de persistencia de capas de costo.
// Las capas nunca se borran: UpdateRemaining solo baja QtyRemaining; una capa
// en cero queda inactiva pero conservada para auditoría.
type CostLayerRepository interface {
	// Create persiste una capa nueva asignando ID y Seq por ítem.
	Create(layer *entity.CostLayer) error
	// GetByID obtiene una capa por ID (nil, nil si no existe).
	GetByID(orgID, id string) (*entity.CostLayer, error)
	// ActiveByItem capas con QtyRemaining > 0 de un ítem, ordenadas por
	// fecha ascendente y Seq como desempate (contrato de orden FIFO).
	ActiveByItem(orgID, itemID string) ([]*entity.CostLayer, error)
	// AllByItem todas las capas del ítem, incluidas las agotadas (auditoría).
	AllByItem(orgID, itemID string) ([]*entity.CostLayer, error)
	// UpdateRemaining persiste el nuevo QtyRemaining de una capa consumida.
	UpdateRemaining(layer *entity.CostLayer) error
}
