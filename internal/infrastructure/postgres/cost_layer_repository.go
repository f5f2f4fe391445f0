package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
)

var _ repository.CostLayerRepository = (*CostLayerRepo)(nil)

// CostLayerRepo implementación sobre PostgreSQL (usable con pool o tx).
// Tabla cost_layers, clave de orden (org_id, item_id, seq): append-mostly,
// la única columna que cambia después del insert es qty_remaining.
type CostLayerRepo struct {
	q Querier
}

// NewCostLayerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCostLayerRepository(q Querier) *CostLayerRepo {
	return &CostLayerRepo{q: q}
}

const costLayerColumns = `id, org_id, item_id, layer_date, source, receipt_id, supplier_id, batch, expiry,
		qty_received, qty_remaining, unit_cost, total_cost, seq, created_at`

// Create persiste una capa nueva. El seq por ítem se asigna aquí; la sección
// crítica por ítem del motor garantiza que no compite con otro insert del
// mismo ítem.
func (r *CostLayerRepo) Create(layer *entity.CostLayer) error {
	if layer.ID == "" {
		layer.ID = uuid.New().String()
	}
	if layer.CreatedAt.IsZero() {
		layer.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO cost_layers (` + costLayerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			COALESCE((SELECT MAX(seq) FROM cost_layers WHERE org_id = $2 AND item_id = $3), 0) + 1,
			$14)
		RETURNING seq`
	err := r.q.QueryRow(context.Background(), query,
		layer.ID, layer.OrgID, layer.ItemID, layer.Date, layer.Source,
		nullIfEmpty(layer.Ref.ReceiptID), nullIfEmpty(layer.Ref.SupplierID), nullIfEmpty(layer.Ref.Batch), layer.Ref.Expiry,
		layer.QtyReceived, layer.QtyRemaining, layer.UnitCost, layer.TotalCost,
		layer.CreatedAt,
	).Scan(&layer.Seq)
	if err != nil {
		// Un choque de seq significa que otro escritor entró al mismo ítem
		// fuera de la sección crítica; el caller puede reintentar.
		if isUniqueViolation(err) {
			return fmt.Errorf("create cost layer: %w", domain.ErrBusy)
		}
		return fmt.Errorf("create cost layer: %w", err)
	}
	return nil
}

// GetByID obtiene una capa por ID (nil, nil si no existe).
func (r *CostLayerRepo) GetByID(orgID, id string) (*entity.CostLayer, error) {
	query := `SELECT ` + costLayerColumns + ` FROM cost_layers WHERE org_id = $1 AND id = $2`
	layer, err := scanLayer(r.q.QueryRow(context.Background(), query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cost layer: %w", err)
	}
	return layer, nil
}

// ActiveByItem capas con remanente, más antiguas primero, seq como desempate.
func (r *CostLayerRepo) ActiveByItem(orgID, itemID string) ([]*entity.CostLayer, error) {
	query := `
		SELECT ` + costLayerColumns + `
		FROM cost_layers
		WHERE org_id = $1 AND item_id = $2 AND qty_remaining > 0
		ORDER BY layer_date ASC, seq ASC`
	return r.list(query, orgID, itemID)
}

// AllByItem todas las capas del ítem, incluidas las agotadas.
func (r *CostLayerRepo) AllByItem(orgID, itemID string) ([]*entity.CostLayer, error) {
	query := `
		SELECT ` + costLayerColumns + `
		FROM cost_layers
		WHERE org_id = $1 AND item_id = $2
		ORDER BY layer_date ASC, seq ASC`
	return r.list(query, orgID, itemID)
}

// UpdateRemaining persiste el remanente consumido. La guarda qty_remaining
// del WHERE evita dejar una capa en negativo aunque algo más fallara antes.
func (r *CostLayerRepo) UpdateRemaining(layer *entity.CostLayer) error {
	query := `
		UPDATE cost_layers SET qty_remaining = $3
		WHERE org_id = $1 AND id = $2 AND $3 >= 0 AND $3 <= qty_received`
	tag, err := r.q.Exec(context.Background(), query, layer.OrgID, layer.ID, layer.QtyRemaining)
	if err != nil {
		return fmt.Errorf("update layer remaining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update layer remaining: capa %s no actualizable", layer.ID)
	}
	return nil
}

func (r *CostLayerRepo) list(query, orgID, itemID string) ([]*entity.CostLayer, error) {
	rows, err := r.q.Query(context.Background(), query, orgID, itemID)
	if err != nil {
		return nil, fmt.Errorf("list cost layers: %w", err)
	}
	defer rows.Close()
	var out []*entity.CostLayer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cost layer: %w", err)
		}
		out = append(out, layer)
	}
	return out, rows.Err()
}

func scanLayer(row pgx.Row) (*entity.CostLayer, error) {
	var l entity.CostLayer
	var receiptID, supplierID, batch *string
	err := row.Scan(
		&l.ID, &l.OrgID, &l.ItemID, &l.Date, &l.Source,
		&receiptID, &supplierID, &batch, &l.Ref.Expiry,
		&l.QtyReceived, &l.QtyRemaining, &l.UnitCost, &l.TotalCost,
		&l.Seq, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if receiptID != nil {
		l.Ref.ReceiptID = *receiptID
	}
	if supplierID != nil {
		l.Ref.SupplierID = *supplierID
	}
	if batch != nil {
		l.Ref.Batch = *batch
	}
	return &l, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
