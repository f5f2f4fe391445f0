package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/Costeo-api/internal/application/engine"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
)

// Ensure TxRunner implements engine.TxRunner.
var _ engine.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL. El motor
// confía en este rollback para el todo-o-nada de consumir capas + asentar en
// el ledger: un fallo a mitad de camino no deja consumo parcial visible.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace
// Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	layerRepo repository.CostLayerRepository,
	ledgerRepo repository.LedgerRepository,
	methodRepo repository.CostingMethodRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	layerRepo := NewCostLayerRepository(tx)
	ledgerRepo := NewLedgerRepository(tx)
	methodRepo := NewCostingMethodRepository(tx)

	if err := fn(layerRepo, ledgerRepo, methodRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
