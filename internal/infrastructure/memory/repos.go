package memory

import (
	"context"
	"sort"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/application/stock"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

var (
	_ repository.StockItemRepository  = (*ItemRepo)(nil)
	_ repository.ProjectionRepository = (*ProjectionRepo)(nil)
	_ repository.PendingRepository    = (*PendingRepo)(nil)
	_ stock.TxRunner                  = (*TxRunner)(nil)
)

// ItemRepo view de leitura do catálogo sobre o Store.
type ItemRepo struct{ s *Store }

func (r *ItemRepo) GetByID(_ context.Context, id string) (*entity.StockItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	item, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	r.s.mu.RLock()
	id, ok := r.s.idByCode[code]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *ItemRepo) List(_ context.Context, includeArchived bool) ([]*entity.StockItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.StockItem, 0, len(r.s.items))
	for _, item := range r.s.items {
		if item.Archived && !includeArchived {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ProjectionRepo view do checkpoint de projeções sobre o Store.
type ProjectionRepo struct{ s *Store }

func (r *ProjectionRepo) Get(_ context.Context, itemID string) (*entity.StockProjection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	proj, ok := r.s.projections[itemID]
	if !ok {
		return nil, nil
	}
	return proj.Clone(), nil
}

// GetForUpdate em memória equivale a Get: a exclusão por item já é garantida
// pelo lock do coordenador.
func (r *ProjectionRepo) GetForUpdate(ctx context.Context, itemID string) (*entity.StockProjection, error) {
	return r.Get(ctx, itemID)
}

func (r *ProjectionRepo) Upsert(_ context.Context, projection *entity.StockProjection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.projections[projection.ItemID] = projection.Clone()
	return nil
}

func (r *ProjectionRepo) List(_ context.Context) ([]*entity.StockProjection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.StockProjection, 0, len(r.s.projections))
	for _, proj := range r.s.projections {
		out = append(out, proj.Clone())
	}
	return out, nil
}

// PendingRepo view da fila de pendências sobre o Store.
type PendingRepo struct{ s *Store }

func (r *PendingRepo) Save(_ context.Context, pending *entity.PendingMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *pending
	r.s.pending[cp.ID] = &cp
	return nil
}

func (r *PendingRepo) GetByID(_ context.Context, id string) (*entity.PendingMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pend, ok := r.s.pending[id]
	if !ok {
		return nil, nil
	}
	cp := *pend
	return &cp, nil
}

func (r *PendingRepo) List(_ context.Context) ([]*entity.PendingMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.PendingMovement, 0, len(r.s.pending))
	for _, pend := range r.s.pending {
		cp := *pend
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParkedAt.Before(out[j].ParkedAt) })
	return out, nil
}

func (r *PendingRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.pending, id)
	return nil
}

// TxRunner em memória: encadeia a função sobre as views do próprio store.
// A atomicidade por item vem do lock do coordenador (single-writer por item).
type TxRunner struct{ s *Store }

// NewTxRunner constrói o runner sobre o store.
func NewTxRunner(s *Store) *TxRunner { return &TxRunner{s: s} }

func (t *TxRunner) Run(_ context.Context, fn func(
	ledger repository.LedgerStore,
	projections repository.ProjectionRepository,
) error) error {
	return fn(t.s, t.s.Projections())
}
