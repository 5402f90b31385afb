// Package memory implementa os adaptadores do motor de estoque em memória:
// razão, catálogo, checkpoints e fila de pendências sobre um Store único
// guardado por RWMutex. Usado pelos testes e pelo modo demo (sem PostgreSQL).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

var _ repository.LedgerStore = (*Store)(nil)

// Store guarda os dados do motor em memória. O stream de cada item é um slice
// append-only; o sequence é a posição no stream (len+1), atribuído sob o lock
// de escrita — nunca há dois registros do mesmo item com o mesmo sequence.
// As demais portas são expostas como views (Items, Projections, Pending).
type Store struct {
	mu          sync.RWMutex
	items       map[string]*entity.StockItem
	idByCode    map[string]string
	streams     map[string][]*entity.MovementRecord
	movByID     map[string]*entity.MovementRecord
	projections map[string]*entity.StockProjection
	pending     map[string]*entity.PendingMovement
}

// NewStore constrói o store vazio.
func NewStore() *Store {
	return &Store{
		items:       make(map[string]*entity.StockItem),
		idByCode:    make(map[string]string),
		streams:     make(map[string][]*entity.MovementRecord),
		movByID:     make(map[string]*entity.MovementRecord),
		projections: make(map[string]*entity.StockProjection),
		pending:     make(map[string]*entity.PendingMovement),
	}
}

// SeedItem insere/substitui um item do catálogo (carga inicial e testes;
// o CRUD de catálogo pertence a outro módulo).
func (s *Store) SeedItem(item *entity.StockItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	s.items[cp.ID] = &cp
	s.idByCode[cp.Code] = cp.ID
}

// Items devolve a view do catálogo.
func (s *Store) Items() *ItemRepo { return &ItemRepo{s: s} }

// Projections devolve a view do checkpoint de projeções.
func (s *Store) Projections() *ProjectionRepo { return &ProjectionRepo{s: s} }

// Pending devolve a view da fila de pendências.
func (s *Store) Pending() *PendingRepo { return &PendingRepo{s: s} }

// ── LedgerStore ───────────────────────────────────────────────────────────────

// Append atribui ID e o próximo sequence do item e grava o registro.
func (s *Store) Append(_ context.Context, draft entity.MovementDraft) (*entity.MovementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[draft.ItemID]
	rec := &entity.MovementRecord{
		ID:            uuid.New().String(),
		ItemID:        draft.ItemID,
		Sequence:      int64(len(stream)) + 1,
		Kind:          draft.Kind,
		QuantityDelta: draft.QuantityDelta,
		Timestamp:     draft.Timestamp,
		SourceRef:     draft.SourceRef,
		Note:          draft.Note,
		CreatedAt:     time.Now(),
	}
	s.streams[draft.ItemID] = append(stream, rec)
	s.movByID[rec.ID] = rec
	out := *rec
	return &out, nil
}

// GetByID devolve o movimento (nil, nil se não existir).
func (s *Store) GetByID(_ context.Context, id string) (*entity.MovementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.movByID[id]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

// ListByItem devolve movimentos do item em ordem de sequence, filtrados pelo
// range e paginados.
func (s *Store) ListByItem(_ context.Context, itemID string, r repository.MovementRange) ([]*entity.MovementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.MovementRecord
	for _, rec := range s.streams[itemID] {
		if r.FromSequence > 0 && rec.Sequence < r.FromSequence {
			continue
		}
		if r.ToSequence > 0 && rec.Sequence > r.ToSequence {
			continue
		}
		if r.From != nil && rec.Timestamp.Before(*r.From) {
			continue
		}
		if r.To != nil && rec.Timestamp.After(*r.To) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	if r.Offset > 0 {
		if r.Offset >= len(out) {
			return nil, nil
		}
		out = out[r.Offset:]
	}
	if r.Limit > 0 && len(out) > r.Limit {
		out = out[:r.Limit]
	}
	return out, nil
}

// LastSequence devolve o último sequence atribuído ao item.
func (s *Store) LastSequence(_ context.Context, itemID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.streams[itemID])), nil
}
