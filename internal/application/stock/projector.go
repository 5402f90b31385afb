package stock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
	domstock "github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/stock"
)

// rebuildPageSize tamanho da página ao reler o razão num rebuild.
const rebuildPageSize = 500

// Projector mantém as projeções de saldo em memória, derivadas do razão.
// ApplyIncremental é O(1) e exige sequence contíguo; qualquer divergência
// dispara rebuild do item a partir do log. As projeções são descartáveis:
// a fonte de verdade é sempre o razão.
type Projector struct {
	ledger      repository.LedgerStore
	checkpoints repository.ProjectionRepository

	mu     sync.RWMutex
	byItem map[string]*entity.StockProjection
}

// NewProjector constrói o projetor vazio. Chamar Restore no startup.
func NewProjector(ledger repository.LedgerStore, checkpoints repository.ProjectionRepository) *Projector {
	return &Projector{
		ledger:      ledger,
		checkpoints: checkpoints,
		byItem:      make(map[string]*entity.StockProjection),
	}
}

// Get devolve uma cópia da projeção do item. Item sem movimentos devolve a
// projeção zero (mesma convenção do repositório de stock: ausência == zero).
func (p *Projector) Get(itemID string) *entity.StockProjection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if proj, ok := p.byItem[itemID]; ok {
		return proj.Clone()
	}
	return &entity.StockProjection{ItemID: itemID, QuantityOnHand: decimal.Zero}
}

// Snapshot devolve cópias de todas as projeções correntes.
func (p *Projector) Snapshot() []*entity.StockProjection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*entity.StockProjection, 0, len(p.byItem))
	for _, proj := range p.byItem {
		out = append(out, proj.Clone())
	}
	return out
}

// ApplyIncremental aplica um movimento aceito sobre a projeção do item.
// Pré-condição: mov.Sequence == LastSequenceApplied+1; caso contrário devolve
// domain.ErrOutOfOrder e o chamador deve disparar Rebuild.
func (p *Projector) ApplyIncremental(mov *entity.MovementRecord) (*entity.StockProjection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	proj, ok := p.byItem[mov.ItemID]
	if !ok {
		// criada lazy no primeiro movimento do item
		proj = &entity.StockProjection{ItemID: mov.ItemID, QuantityOnHand: decimal.Zero}
		p.byItem[mov.ItemID] = proj
	}
	if mov.Sequence != proj.LastSequenceApplied+1 {
		return nil, fmt.Errorf("item %s: esperado sequence %d, recebido %d: %w",
			mov.ItemID, proj.LastSequenceApplied+1, mov.Sequence, domain.ErrOutOfOrder)
	}
	proj.QuantityOnHand = proj.QuantityOnHand.Add(mov.QuantityDelta)
	proj.LastSequenceApplied = mov.Sequence
	proj.UpdatedAt = mov.CreatedAt
	return proj.Clone(), nil
}

// Rebuild recalcula a projeção do item reaplicando o razão inteiro desde o
// sequence 0 (leitura paginada, point-in-time) e troca o resultado de forma
// atômica. Usado no startup e ao detectar inconsistência. Movimentos que
// chegarem durante o rebuild aguardam no lock por item do coordenador.
func (p *Projector) Rebuild(ctx context.Context, itemID string) (*entity.StockProjection, error) {
	total := decimal.Zero
	var lastSeq int64
	var lastAt time.Time

	r := repository.MovementRange{Limit: rebuildPageSize}
	for {
		movs, err := p.ledger.ListByItem(ctx, itemID, r)
		if err != nil {
			return nil, fmt.Errorf("rebuild item %s: %w", itemID, err)
		}
		if len(movs) == 0 {
			break
		}
		total = domstock.Fold(total, movs)
		last := movs[len(movs)-1]
		lastSeq = last.Sequence
		lastAt = last.CreatedAt
		if len(movs) < rebuildPageSize {
			break
		}
		// reinicia a leitura após o último sequence visto
		r.FromSequence = lastSeq + 1
	}

	proj := &entity.StockProjection{
		ItemID:              itemID,
		QuantityOnHand:      total,
		LastSequenceApplied: lastSeq,
		UpdatedAt:           lastAt,
	}
	p.mu.Lock()
	p.byItem[itemID] = proj
	p.mu.Unlock()
	return proj.Clone(), nil
}

// Restore carrega os checkpoints persistidos e aplica a cauda do razão que
// ficou depois de cada checkpoint. Checkpoint é só cache: se a cauda não
// encaixar, cai para rebuild completo do item (Cenário de recuperação).
func (p *Projector) Restore(ctx context.Context) error {
	saved, err := p.checkpoints.List(ctx)
	if err != nil {
		return fmt.Errorf("restore checkpoints: %w", err)
	}
	for _, cp := range saved {
		last, err := p.ledger.LastSequence(ctx, cp.ItemID)
		if err != nil {
			return fmt.Errorf("restore item %s: %w", cp.ItemID, err)
		}
		if cp.LastSequenceApplied > last {
			// checkpoint adiante do razão (razão restaurado de backup, por
			// exemplo): o razão ganha sempre
			if _, err := p.Rebuild(ctx, cp.ItemID); err != nil {
				return err
			}
			continue
		}
		proj := cp.Clone()
		for proj != nil {
			tail, err := p.ledger.ListByItem(ctx, cp.ItemID, repository.MovementRange{
				FromSequence: proj.LastSequenceApplied + 1,
				Limit:        rebuildPageSize,
			})
			if err != nil {
				return fmt.Errorf("restore item %s: %w", cp.ItemID, err)
			}
			for _, mov := range tail {
				if mov.Sequence != proj.LastSequenceApplied+1 {
					// checkpoint divergente do razão: o razão ganha sempre
					if _, err := p.Rebuild(ctx, cp.ItemID); err != nil {
						return err
					}
					proj = nil
					break
				}
				proj.QuantityOnHand = proj.QuantityOnHand.Add(mov.QuantityDelta)
				proj.LastSequenceApplied = mov.Sequence
				proj.UpdatedAt = mov.CreatedAt
			}
			if len(tail) < rebuildPageSize {
				break
			}
		}
		if proj != nil {
			p.mu.Lock()
			p.byItem[cp.ItemID] = proj
			p.mu.Unlock()
		}
	}
	return nil
}

// Checkpoint persiste as projeções correntes como cache de performance.
// Chamado periodicamente; perder um checkpoint nunca perde dados.
func (p *Projector) Checkpoint(ctx context.Context) error {
	for _, proj := range p.Snapshot() {
		if err := p.checkpoints.Upsert(ctx, proj); err != nil {
			return fmt.Errorf("checkpoint item %s: %w", proj.ItemID, err)
		}
	}
	return nil
}
