// Package memory implementa los puertos de persistencia del motor sobre mapas
// en memoria. Se usa en tests y en modo dev (STORE=memory): misma semántica
// transaccional que el adaptador PostgreSQL — las escrituras de un Run se
// aplican todas o ninguna — con un mutex global del almacén como transacción.
// La serialización fina por ítem la aporta el KeyedLock del motor, no este
// paquete.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Costeo-api/internal/application/engine"
	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.CostLayerRepository = (*Store)(nil)
var _ repository.LedgerRepository = (*Store)(nil)
var _ repository.CostingMethodRepository = (*Store)(nil)
var _ engine.TxRunner = (*Store)(nil)

const sep = "\x00"

func itemKey(orgID, itemID string) string { return orgID + sep + itemID }

// Store almacén en memoria. Los métodos de lectura (interfaces repository.*)
// toman RLock y devuelven copias; Run toma el lock exclusivo y aplica las
// escrituras staged solo si el callback termina sin error.
type Store struct {
	mu            sync.RWMutex
	layersByItem  map[string][]*entity.CostLayer
	layersByID    map[string]*entity.CostLayer // key org+sep+layerID
	entriesByItem map[string][]*entity.LedgerEntry
	methods       map[string]*entity.CostingMethod // key org+sep+item ("" = default)
	layerSeq      map[string]int64
	entrySeq      map[string]int64
}

// NewStore construye el almacén vacío.
func NewStore() *Store {
	return &Store{
		layersByItem:  make(map[string][]*entity.CostLayer),
		layersByID:    make(map[string]*entity.CostLayer),
		entriesByItem: make(map[string][]*entity.LedgerEntry),
		methods:       make(map[string]*entity.CostingMethod),
		layerSeq:      make(map[string]int64),
		entrySeq:      make(map[string]int64),
	}
}

// ── TxRunner ─────────────────────────────────────────────────────────────────

// Run ejecuta fn con repositorios staged sobre el almacén. Si fn retorna
// error, nada de lo escrito se aplica (rollback implícito); si termina bien,
// el commit aplica capas nuevas, consumos, asientos y upserts de método de
// una sola vez bajo el lock exclusivo.
func (s *Store) Run(ctx context.Context, fn func(
	layerRepo repository.CostLayerRepository,
	ledgerRepo repository.LedgerRepository,
	methodRepo repository.CostingMethodRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{
		s:             s,
		updated:       make(map[string]decimal.Decimal),
		pendingLayers: make(map[string]int64),
		pendingEntry:  make(map[string]int64),
	}
	if err := fn((*txnLayers)(t), (*txnLedger)(t), (*txnMethods)(t)); err != nil {
		return err
	}
	t.commit()
	return nil
}

// txn escrituras pendientes de un Run.
type txn struct {
	s             *Store
	newLayers     []*entity.CostLayer
	updated       map[string]decimal.Decimal // org+sep+layerID -> nuevo remanente
	newEntries    []*entity.LedgerEntry
	upserts       []*entity.CostingMethod
	pendingLayers map[string]int64 // creados por clave de ítem en esta txn
	pendingEntry  map[string]int64
}

func (t *txn) commit() {
	for _, l := range t.newLayers {
		cp := copyLayer(l)
		k := itemKey(l.OrgID, l.ItemID)
		t.s.layersByItem[k] = append(t.s.layersByItem[k], cp)
		t.s.layersByID[l.OrgID+sep+l.ID] = cp
		if cp.Seq > t.s.layerSeq[k] {
			t.s.layerSeq[k] = cp.Seq
		}
	}
	for k, remaining := range t.updated {
		if stored, ok := t.s.layersByID[k]; ok {
			stored.QtyRemaining = remaining
		}
	}
	for _, e := range t.newEntries {
		cp := copyEntry(e)
		k := itemKey(e.OrgID, e.ItemID)
		t.s.entriesByItem[k] = append(t.s.entriesByItem[k], cp)
		if cp.Seq > t.s.entrySeq[k] {
			t.s.entrySeq[k] = cp.Seq
		}
	}
	for _, m := range t.upserts {
		cp := *m
		t.s.methods[itemKey(m.OrgID, m.ItemID)] = &cp
	}
}

// ── Repositorio de capas (vista transaccional) ───────────────────────────────

type txnLayers txn

func (t *txnLayers) Create(layer *entity.CostLayer) error {
	if layer.ID == "" {
		layer.ID = uuid.New().String()
	}
	k := itemKey(layer.OrgID, layer.ItemID)
	t.pendingLayers[k]++
	layer.Seq = t.s.layerSeq[k] + t.pendingLayers[k]
	if layer.CreatedAt.IsZero() {
		layer.CreatedAt = time.Now()
	}
	t.newLayers = append(t.newLayers, layer)
	return nil
}

func (t *txnLayers) GetByID(orgID, id string) (*entity.CostLayer, error) {
	for _, l := range t.newLayers {
		if l.OrgID == orgID && l.ID == id {
			return copyLayer(l), nil
		}
	}
	stored, ok := t.s.layersByID[orgID+sep+id]
	if !ok {
		return nil, nil
	}
	cp := copyLayer(stored)
	if remaining, ok := t.updated[orgID+sep+id]; ok {
		cp.QtyRemaining = remaining
	}
	return cp, nil
}

func (t *txnLayers) ActiveByItem(orgID, itemID string) ([]*entity.CostLayer, error) {
	return t.merged(orgID, itemID, true), nil
}

func (t *txnLayers) AllByItem(orgID, itemID string) ([]*entity.CostLayer, error) {
	return t.merged(orgID, itemID, false), nil
}

func (t *txnLayers) UpdateRemaining(layer *entity.CostLayer) error {
	for _, l := range t.newLayers {
		if l.OrgID == layer.OrgID && l.ID == layer.ID {
			l.QtyRemaining = layer.QtyRemaining
			return nil
		}
	}
	if _, ok := t.s.layersByID[layer.OrgID+sep+layer.ID]; !ok {
		return domain.ErrNotFound
	}
	t.updated[layer.OrgID+sep+layer.ID] = layer.QtyRemaining
	return nil
}

// merged copias de las capas del ítem con los consumos staged aplicados.
func (t *txnLayers) merged(orgID, itemID string, onlyActive bool) []*entity.CostLayer {
	k := itemKey(orgID, itemID)
	out := make([]*entity.CostLayer, 0, len(t.s.layersByItem[k]))
	for _, stored := range t.s.layersByItem[k] {
		cp := copyLayer(stored)
		if remaining, ok := t.updated[orgID+sep+cp.ID]; ok {
			cp.QtyRemaining = remaining
		}
		if onlyActive && !cp.Active() {
			continue
		}
		out = append(out, cp)
	}
	for _, l := range t.newLayers {
		if l.OrgID != orgID || l.ItemID != itemID {
			continue
		}
		if onlyActive && !l.Active() {
			continue
		}
		out = append(out, copyLayer(l))
	}
	sortLayers(out)
	return out
}

// ── Repositorio de ledger (vista transaccional) ──────────────────────────────

type txnLedger txn

func (t *txnLedger) Append(entry *entity.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	k := itemKey(entry.OrgID, entry.ItemID)
	t.pendingEntry[k]++
	entry.Seq = t.s.entrySeq[k] + t.pendingEntry[k]
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	t.newEntries = append(t.newEntries, entry)
	return nil
}

func (t *txnLedger) LastByItem(orgID, itemID string) (*entity.LedgerEntry, error) {
	var last *entity.LedgerEntry
	for _, e := range t.s.entriesByItem[itemKey(orgID, itemID)] {
		last = laterEntry(last, e)
	}
	for _, e := range t.newEntries {
		if e.OrgID == orgID && e.ItemID == itemID {
			last = laterEntry(last, e)
		}
	}
	if last == nil {
		return nil, nil
	}
	return copyEntry(last), nil
}

func (t *txnLedger) ListByItem(orgID, itemID string, from, to *time.Time, limit, offset int) ([]*entity.LedgerEntry, error) {
	all := append([]*entity.LedgerEntry{}, t.s.entriesByItem[itemKey(orgID, itemID)]...)
	for _, e := range t.newEntries {
		if e.OrgID == orgID && e.ItemID == itemID {
			all = append(all, e)
		}
	}
	return filterEntries(all, from, to, limit, offset), nil
}

func (t *txnLedger) LatestPerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error) {
	return latestPerItem(t.allFor(orgID), orgID, asOf, ""), nil
}

func (t *txnLedger) LastPurchasePerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error) {
	return latestPerItem(t.allFor(orgID), orgID, asOf, entity.MovementPURCHASE), nil
}

func (t *txnLedger) allFor(orgID string) map[string][]*entity.LedgerEntry {
	merged := make(map[string][]*entity.LedgerEntry)
	for k, entries := range t.s.entriesByItem {
		if strings.HasPrefix(k, orgID+sep) {
			merged[k] = append(merged[k], entries...)
		}
	}
	for _, e := range t.newEntries {
		if e.OrgID == orgID {
			k := itemKey(e.OrgID, e.ItemID)
			merged[k] = append(merged[k], e)
		}
	}
	return merged
}

// ── Repositorio de métodos (vista transaccional) ─────────────────────────────

type txnMethods txn

func (t *txnMethods) Upsert(method *entity.CostingMethod) error {
	if method.ID == "" {
		method.ID = uuid.New().String()
	}
	t.upserts = append(t.upserts, method)
	return nil
}

func (t *txnMethods) Get(orgID, itemID string) (*entity.CostingMethod, error) {
	for i := len(t.upserts) - 1; i >= 0; i-- {
		if t.upserts[i].OrgID == orgID && t.upserts[i].ItemID == itemID {
			cp := *t.upserts[i]
			return &cp, nil
		}
	}
	if m, ok := t.s.methods[itemKey(orgID, itemID)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (t *txnMethods) Resolve(orgID, itemID string, at time.Time) (*entity.CostingMethod, error) {
	return resolveMethod(t, orgID, itemID, at)
}

// ── Lecturas directas (fuera de transacción) ─────────────────────────────────

// Create fuera de Run no forma parte del flujo del motor; se expone para
// seeding de tests.
func (s *Store) Create(layer *entity.CostLayer) error {
	return s.Run(context.Background(), func(lr repository.CostLayerRepository, _ repository.LedgerRepository, _ repository.CostingMethodRepository) error {
		return lr.Create(layer)
	})
}

func (s *Store) GetByID(orgID, id string) (*entity.CostLayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.layersByID[orgID+sep+id]
	if !ok {
		return nil, nil
	}
	return copyLayer(stored), nil
}

func (s *Store) ActiveByItem(orgID, itemID string) ([]*entity.CostLayer, error) {
	return s.readLayers(orgID, itemID, true), nil
}

func (s *Store) AllByItem(orgID, itemID string) ([]*entity.CostLayer, error) {
	return s.readLayers(orgID, itemID, false), nil
}

func (s *Store) readLayers(orgID, itemID string, onlyActive bool) []*entity.CostLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.CostLayer, 0)
	for _, l := range s.layersByItem[itemKey(orgID, itemID)] {
		if onlyActive && !l.Active() {
			continue
		}
		out = append(out, copyLayer(l))
	}
	sortLayers(out)
	return out
}

// UpdateRemaining fuera de transacción no está soportado: el consumo de capas
// siempre pasa por Run.
func (s *Store) UpdateRemaining(*entity.CostLayer) error {
	return domain.ErrInvalidInput
}

// Append fuera de transacción no está soportado.
func (s *Store) Append(*entity.LedgerEntry) error {
	return domain.ErrInvalidInput
}

func (s *Store) LastByItem(orgID, itemID string) (*entity.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *entity.LedgerEntry
	for _, e := range s.entriesByItem[itemKey(orgID, itemID)] {
		last = laterEntry(last, e)
	}
	if last == nil {
		return nil, nil
	}
	return copyEntry(last), nil
}

func (s *Store) ListByItem(orgID, itemID string, from, to *time.Time, limit, offset int) ([]*entity.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEntries(s.entriesByItem[itemKey(orgID, itemID)], from, to, limit, offset), nil
}

func (s *Store) LatestPerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byItem := make(map[string][]*entity.LedgerEntry)
	for k, entries := range s.entriesByItem {
		if strings.HasPrefix(k, orgID+sep) {
			byItem[k] = entries
		}
	}
	return latestPerItem(byItem, orgID, asOf, ""), nil
}

func (s *Store) LastPurchasePerItem(orgID string, asOf *time.Time) ([]*entity.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byItem := make(map[string][]*entity.LedgerEntry)
	for k, entries := range s.entriesByItem {
		if strings.HasPrefix(k, orgID+sep) {
			byItem[k] = entries
		}
	}
	return latestPerItem(byItem, orgID, asOf, entity.MovementPURCHASE), nil
}

func (s *Store) Upsert(method *entity.CostingMethod) error {
	return s.Run(context.Background(), func(_ repository.CostLayerRepository, _ repository.LedgerRepository, mr repository.CostingMethodRepository) error {
		return mr.Upsert(method)
	})
}

func (s *Store) Get(orgID, itemID string) (*entity.CostingMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.methods[itemKey(orgID, itemID)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) Resolve(orgID, itemID string, at time.Time) (*entity.CostingMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// El RLock no es reentrante: se resuelve con la vista interna sin lock.
	return resolveMethod(lockedMethods{s}, orgID, itemID, at)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// getter común para Resolve (vista transaccional o directa, lock ya tomado).
type methodGetter interface {
	Get(orgID, itemID string) (*entity.CostingMethod, error)
}

// resolveMethod prioriza la fila del ítem sobre la default de la organización;
// ambas solo si EffectiveFrom <= at.
func resolveMethod(g methodGetter, orgID, itemID string, at time.Time) (*entity.CostingMethod, error) {
	if itemID != "" {
		m, err := g.Get(orgID, itemID)
		if err != nil {
			return nil, err
		}
		if m != nil && !m.EffectiveFrom.After(at) {
			return m, nil
		}
	}
	m, err := g.Get(orgID, "")
	if err != nil {
		return nil, err
	}
	if m != nil && !m.EffectiveFrom.After(at) {
		return m, nil
	}
	return nil, nil
}

// lockedMethods vista de métodos con el lock del Store ya tomado.
type lockedMethods struct{ s *Store }

func (g lockedMethods) Get(orgID, itemID string) (*entity.CostingMethod, error) {
	if m, ok := g.s.methods[itemKey(orgID, itemID)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func copyLayer(l *entity.CostLayer) *entity.CostLayer {
	cp := *l
	if l.Ref.Expiry != nil {
		e := *l.Ref.Expiry
		cp.Ref.Expiry = &e
	}
	return &cp
}

func copyEntry(e *entity.LedgerEntry) *entity.LedgerEntry {
	cp := *e
	return &cp
}

func sortLayers(layers []*entity.CostLayer) {
	sort.SliceStable(layers, func(i, j int) bool {
		if layers[i].Date.Equal(layers[j].Date) {
			return layers[i].Seq < layers[j].Seq
		}
		return layers[i].Date.Before(layers[j].Date)
	})
}

// laterEntry el más nuevo por (fecha, seq).
func laterEntry(a, b *entity.LedgerEntry) *entity.LedgerEntry {
	if a == nil {
		return b
	}
	if b.Date.After(a.Date) || (b.Date.Equal(a.Date) && b.Seq > a.Seq) {
		return b
	}
	return a
}

func filterEntries(entries []*entity.LedgerEntry, from, to *time.Time, limit, offset int) []*entity.LedgerEntry {
	filtered := make([]*entity.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		filtered = append(filtered, copyEntry(e))
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Date.Equal(filtered[j].Date) {
			return filtered[i].Seq < filtered[j].Seq
		}
		return filtered[i].Date.Before(filtered[j].Date)
	})
	if offset > 0 {
		if offset >= len(filtered) {
			return nil
		}
		filtered = filtered[offset:]
	}
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered
}

// latestPerItem última entrada por ítem (opcionalmente filtrando movimiento)
// con fecha <= asOf; resultado ordenado por ItemID para reportes deterministas.
func latestPerItem(byItem map[string][]*entity.LedgerEntry, orgID string, asOf *time.Time, movement string) []*entity.LedgerEntry {
	out := make([]*entity.LedgerEntry, 0, len(byItem))
	for _, entries := range byItem {
		var last *entity.LedgerEntry
		for _, e := range entries {
			if movement != "" && e.Movement != movement {
				continue
			}
			if asOf != nil && e.Date.After(*asOf) {
				continue
			}
			last = laterEntry(last, e)
		}
		if last != nil {
			out = append(out, copyEntry(last))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
