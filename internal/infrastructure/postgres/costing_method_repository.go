package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
)

var _ repository.CostingMethodRepository = (*CostingMethodRepo)(nil)

// CostingMethodRepo configuración de métodos de costeo sobre PostgreSQL.
// Tabla costing_methods con UNIQUE (org_id, item_id); item_id guarda '' para
// la fila default de la organización, así el constraint garantiza a lo sumo
// una default por org y una fila por (org, ítem).
type CostingMethodRepo struct {
	q Querier
}

// NewCostingMethodRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCostingMethodRepository(q Querier) *CostingMethodRepo {
	return &CostingMethodRepo{q: q}
}

// Upsert inserta o reemplaza la configuración vigente de (org, ítem).
func (r *CostingMethodRepo) Upsert(method *entity.CostingMethod) error {
	if method.ID == "" {
		method.ID = uuid.New().String()
	}
	if method.UpdatedAt.IsZero() {
		method.UpdatedAt = time.Now()
	}
	query := `
		INSERT INTO costing_methods (id, org_id, item_id, method, effective_from, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (org_id, item_id)
		DO UPDATE SET method = EXCLUDED.method, effective_from = EXCLUDED.effective_from, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(context.Background(), query,
		method.ID, method.OrgID, method.ItemID, string(method.Method), method.EffectiveFrom, method.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert costing method: %w", err)
	}
	return nil
}

// Get configuración exacta de (org, ítem); itemID vacío = default.
func (r *CostingMethodRepo) Get(orgID, itemID string) (*entity.CostingMethod, error) {
	query := `
		SELECT id, org_id, item_id, method, effective_from, updated_at
		FROM costing_methods WHERE org_id = $1 AND item_id = $2`
	var m entity.CostingMethod
	var method string
	err := r.q.QueryRow(context.Background(), query, orgID, itemID).Scan(
		&m.ID, &m.OrgID, &m.ItemID, &method, &m.EffectiveFrom, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get costing method: %w", err)
	}
	m.Method = entity.Method(method)
	return &m, nil
}

// Resolve método vigente para el ítem a la fecha: fila del ítem si existe y
// está vigente, si no la default de la organización.
func (r *CostingMethodRepo) Resolve(orgID, itemID string, at time.Time) (*entity.CostingMethod, error) {
	query := `
		SELECT id, org_id, item_id, method, effective_from, updated_at
		FROM costing_methods
		WHERE org_id = $1 AND item_id IN ($2, '') AND effective_from <= $3
		ORDER BY item_id DESC
		LIMIT 1`
	var m entity.CostingMethod
	var method string
	err := r.q.QueryRow(context.Background(), query, orgID, itemID, at).Scan(
		&m.ID, &m.OrgID, &m.ItemID, &method, &m.EffectiveFrom, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve costing method: %w", err)
	}
	m.Method = entity.Method(method)
	return &m, nil
}
