// Package lock implementa la serialización por ítem del motor: una sección
// crítica por clave (org:ítem) con espera acotada por contexto. Claves
// distintas no se bloquean entre sí.
package lock

import (
	"context"
	"sync"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"golang.org/x/sync/semaphore"
)

// KeyedLock sección crítica exclusiva por clave, respaldada por un
// semaphore.Weighted de peso 1 por clave. Los semáforos se crean bajo demanda
// y se conservan (el universo de claves es el catálogo de ítems, acotado).
type KeyedLock struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewKeyedLock construye el lock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{sems: make(map[string]*semaphore.Weighted)}
}

// Acquire toma la sección crítica de la clave. Si el contexto expira antes de
// obtenerla retorna domain.ErrBusy: el caller puede reintentar sin riesgo
// porque nada se mutó. El release devuelto debe llamarse exactamente una vez.
func (k *KeyedLock) Acquire(ctx context.Context, key string) (func(), error) {
	sem := k.semFor(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, domain.ErrBusy
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

func (k *KeyedLock) semFor(key string) *semaphore.Weighted {
	k.mu.Lock()
	defer k.mu.Unlock()
	sem, ok := k.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		k.sems[key] = sem
	}
	return sem
}
