package engine

import (
	"context"

	"github.com/jhoicas/Costeo-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción del almacén, pasando
// repositorios atados a esa tx. Garantiza el todo-o-nada del motor: si fn
// falla después de consumir capas, el rollback revierte el consumo antes de
// soltar la sección crítica del ítem.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		layerRepo repository.CostLayerRepository,
		ledgerRepo repository.LedgerRepository,
		methodRepo repository.CostingMethodRepository,
	) error) error
}

// ItemLocker serializa las escrituras por ítem. Acquire bloquea hasta obtener
// la sección crítica de la clave o hasta que el contexto expire; en ese caso
// retorna domain.ErrBusy (reintentable por el caller). Claves distintas
// avanzan en paralelo; no hay lock global.
type ItemLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
