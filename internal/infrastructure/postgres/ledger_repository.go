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

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo implementación del ledger de stock sobre PostgreSQL. Tabla
// stock_ledger, append-only, clave de orden (org_id, item_id, seq); no hay
// UPDATE ni DELETE en este repositorio.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

const ledgerColumns = `id, org_id, item_id, seq, tx_date, movement, qty_delta, unit_cost,
		total_cost_delta, running_qty, running_value, running_avg_cost, note, ref, created_at`

// Append persiste una entrada asignando seq monotónico por (org, ítem). El
// motor serializa por ítem, así el MAX(seq)+1 no compite consigo mismo.
func (r *LedgerRepo) Append(entry *entity.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO stock_ledger (` + ledgerColumns + `)
		VALUES ($1, $2, $3,
			COALESCE((SELECT MAX(seq) FROM stock_ledger WHERE org_id = $2 AND item_id = $3), 0) + 1,
			$4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`
	err := r.q.QueryRow(context.Background(), query,
		entry.ID, entry.OrgID, entry.ItemID,
		entry.Date, entry.Movement, entry.QtyDelta, entry.UnitCost,
		entry.TotalCostDelta, entry.RunningQty, entry.RunningValue, entry.RunningAvgCost,
		nullIfEmpty(entry.Note), nullIfEmpty(entry.Ref), entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append ledger entry: %w", domain.ErrBusy)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// LastByItem última entrada del ítem por (fecha, seq); nil, nil si no hay.
func (r *LedgerRepo) LastByItem(orgID, itemID string) (*entity.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM stock_ledger
		WHERE org_id = $1 AND item_id = $2
		ORDER BY tx_date DESC, seq DESC
		LIMIT 1`
	entry, err := scanEntry(r.q.QueryRow(context.Background(), query, orgID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last ledger entry: %w", err)
	}
	return entry, nil
}

// ListByItem entradas de un ítem en un rango de fechas, orden de reproducción.
func (r *LedgerRepo) ListByItem(orgID, itemID string, from, to *time.Time, limit, offset int) ([]*entity.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM stock_ledger
		WHERE org_id = $1 AND item_id = $2`
	args := []any{orgID, itemID}
	pos := 3
	if from != nil {
		query += fmt.Sprintf(" AND tx_date >= $%d", pos)
		args = append(args, *from)
		pos++
	}
	if to != nil {
		query += fmt.Sprintf(" AND tx_date <= $%d", pos)
		args = append(args, *to)
		pos++
	}
	query += " ORDER BY tx_date ASC, seq ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", pos, pos+1)
		args = append(args, limit, offset)
	}
	return r.list(query, args...)
}

// LatestPerItem última entrada de cada ítem de la organización a la fecha asOf.
func (r *LedgerRepo) LatestPerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error) {
	query := `
		SELECT DISTINCT ON (item_id) ` + ledgerColumns + `
		FROM stock_ledger
		WHERE org_id = $1 AND ($2::timestamptz IS NULL OR tx_date <= $2)
		ORDER BY item_id, tx_date DESC, seq DESC`
	return r.list(query, orgID, asOf)
}

// LastPurchasePerItem última compra de cada ítem a la fecha asOf.
func (r *LedgerRepo) LastPurchasePerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error) {
	query := `
		SELECT DISTINCT ON (item_id) ` + ledgerColumns + `
		FROM stock_ledger
		WHERE org_id = $1 AND movement = $2 AND ($3::timestamptz IS NULL OR tx_date <= $3)
		ORDER BY item_id, tx_date DESC, seq DESC`
	return r.list(query, orgID, entity.MovementPURCHASE, asOf)
}

func (r *LedgerRepo) list(query string, args ...any) ([]*entity.LedgerEntry, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()
	var out []*entity.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (*entity.LedgerEntry, error) {
	var e entity.LedgerEntry
	var note, ref *string
	err := row.Scan(
		&e.ID, &e.OrgID, &e.ItemID, &e.Seq, &e.Date, &e.Movement,
		&e.QtyDelta, &e.UnitCost, &e.TotalCostDelta,
		&e.RunningQty, &e.RunningValue, &e.RunningAvgCost,
		&note, &ref, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if note != nil {
		e.Note = *note
	}
	if ref != nil {
		e.Ref = *ref
	}
	return &e, nil
}
