package stock

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
	domstock "github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/stock"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/pkg/logger"
)

// lockShards número de mutexes do lock particionado por item.
const lockShards = 64

// Coordinator é o único ponto de entrada que transforma um ConsumptionEvent
// ou lançamento manual em MovementRecord commitado.
//
// Sequência de commit por item, mutuamente exclusiva entre chamadores
// concorrentes (disciplina single-writer por item):
//  1. lê a projeção corrente;
//  2. calcula o saldo resultante;
//  3. política reject-on-insufficient: resultado negativo rejeita sem efeito;
//  4. append no razão + checkpoint (mesma transação), apply incremental,
//     recompute de KPI e publicação, nessa ordem causal.
//
// Itens diferentes prosseguem em paralelo; o lock é por item (sharded).
type Coordinator struct {
	tx          TxRunner
	items       repository.StockItemRepository
	pending     repository.PendingRepository
	projector   *Projector
	broadcaster *Broadcaster
	retry       RetryConfig
	log         *logger.Logger

	locks [lockShards]sync.Mutex
}

// NewCoordinator constrói o coordenador de débitos.
func NewCoordinator(
	tx TxRunner,
	items repository.StockItemRepository,
	pending repository.PendingRepository,
	projector *Projector,
	broadcaster *Broadcaster,
	retry RetryConfig,
	log *logger.Logger,
) *Coordinator {
	if retry.Attempts < 1 {
		retry = DefaultRetryConfig()
	}
	return &Coordinator{
		tx:          tx,
		items:       items,
		pending:     pending,
		projector:   projector,
		broadcaster: broadcaster,
		retry:       retry,
		log:         log,
	}
}

// lockFor devolve o mutex do shard do item. Colisão de shard só serializa
// itens não relacionados ocasionalmente; nunca afrouxa a exclusão por item.
func (c *Coordinator) lockFor(itemID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(itemID))
	return &c.locks[h.Sum32()%lockShards]
}

// RegisterConsumption processa o evento do fluxo de produção ("ao iniciar
// corte"). Quantidade positiva vira delta negativo de tipo CONSUMPTION.
// Rejeição (saldo insuficiente) impede a etapa de produção de prosseguir.
func (c *Coordinator) RegisterConsumption(ctx context.Context, ev entity.ConsumptionEvent) (*entity.MovementRecord, error) {
	if ev.ItemCode == "" || !ev.Quantity.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	item, err := c.resolveByCode(ctx, ev.ItemCode)
	if err != nil {
		return nil, err
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	note := ""
	if ev.Stage != "" {
		note = "etapa: " + ev.Stage
	}
	return c.commit(ctx, item, entity.MovementDraft{
		ItemID:        item.ID,
		Kind:          entity.MovementKindConsumption,
		QuantityDelta: ev.Quantity.Neg(),
		Timestamp:     ts,
		SourceRef:     ev.ProductionRef,
		Note:          note,
	})
}

// RegisterEntry lança um recebimento manual (delta positivo). Entradas nunca
// falham a checagem de saldo.
func (c *Coordinator) RegisterEntry(ctx context.Context, itemCode string, quantity decimal.Decimal, sourceRef, note string) (*entity.MovementRecord, error) {
	if itemCode == "" || !quantity.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	item, err := c.resolveByCode(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	return c.commit(ctx, item, entity.MovementDraft{
		ItemID:        item.ID,
		Kind:          entity.MovementKindEntry,
		QuantityDelta: quantity,
		Timestamp:     time.Now(),
		SourceRef:     sourceRef,
		Note:          note,
	})
}

// RegisterExit lança uma saída manual (requisição de material fora de ordem
// de produção). Quantidade positiva vira delta negativo de tipo EXIT e passa
// pela mesma política reject-on-insufficient dos consumos.
func (c *Coordinator) RegisterExit(ctx context.Context, itemCode string, quantity decimal.Decimal, sourceRef, note string) (*entity.MovementRecord, error) {
	if itemCode == "" || !quantity.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	item, err := c.resolveByCode(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	return c.commit(ctx, item, entity.MovementDraft{
		ItemID:        item.ID,
		Kind:          entity.MovementKindExit,
		QuantityDelta: quantity.Neg(),
		Timestamp:     time.Now(),
		SourceRef:     sourceRef,
		Note:          note,
	})
}

// RegisterAdjustment lança um ajuste com delta assinado. Deltas negativos
// passam pela mesma política reject-on-insufficient dos consumos.
func (c *Coordinator) RegisterAdjustment(ctx context.Context, itemCode string, delta decimal.Decimal, sourceRef, note string) (*entity.MovementRecord, error) {
	if itemCode == "" || delta.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	item, err := c.resolveByCode(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	return c.commit(ctx, item, entity.MovementDraft{
		ItemID:        item.ID,
		Kind:          entity.MovementKindAdjustment,
		QuantityDelta: delta,
		Timestamp:     time.Now(),
		SourceRef:     sourceRef,
		Note:          note,
	})
}

// RegisterCompensation estorna um movimento commitado criando o movimento de
// sinal oposto, com SourceRef apontando para o original. Política explícita
// para corte cancelado depois de iniciado: o razão nunca é mutado, e o
// estorno fica auditável ao lado do débito original.
func (c *Coordinator) RegisterCompensation(ctx context.Context, movementID, note string) (*entity.MovementRecord, error) {
	if movementID == "" {
		return nil, domain.ErrInvalidInput
	}
	var original *entity.MovementRecord
	err := c.tx.Run(ctx, func(ledger repository.LedgerStore, _ repository.ProjectionRepository) error {
		var err error
		original, err = ledger.GetByID(ctx, movementID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("buscar movimento original: %w", err)
	}
	if original == nil {
		return nil, domain.ErrNotFound
	}
	item, err := c.resolveByID(ctx, original.ItemID)
	if err != nil {
		return nil, err
	}
	if note == "" {
		note = "estorno do movimento " + original.ID
	}
	return c.commit(ctx, item, entity.MovementDraft{
		ItemID:        item.ID,
		Kind:          entity.MovementKindAdjustment,
		QuantityDelta: original.QuantityDelta.Neg(),
		Timestamp:     time.Now(),
		SourceRef:     original.ID,
		Note:          note,
	})
}

// RetryPending reprocessa um movimento estacionado. Repassa pelas mesmas
// validações do fluxo normal — saldo e arquivamento podem ter mudado desde o
// estacionamento — e remove da fila em caso de sucesso.
func (c *Coordinator) RetryPending(ctx context.Context, pendingID string) (*entity.MovementRecord, error) {
	pend, err := c.pending.GetByID(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pend == nil {
		return nil, domain.ErrNotFound
	}
	item, err := c.resolveByID(ctx, pend.Draft.ItemID)
	if err != nil {
		return nil, err
	}
	rec, err := c.commit(ctx, item, pend.Draft)
	if err != nil {
		return nil, err
	}
	if err := c.pending.Delete(ctx, pend.ID); err != nil {
		c.log.Error().Err(err).Str("pending_id", pend.ID).Msg("remover pendente reprocessado")
	}
	return rec, nil
}

// resolveByCode valida o item do catálogo: precisa existir e não estar
// arquivado.
func (c *Coordinator) resolveByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	item, err := c.items.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.Archived {
		return nil, domain.ErrItemArchived
	}
	return item, nil
}

// resolveByID aplica a mesma política do resolveByCode a partir do ID.
func (c *Coordinator) resolveByID(ctx context.Context, id string) (*entity.StockItem, error) {
	item, err := c.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.Archived {
		return nil, domain.ErrItemArchived
	}
	return item, nil
}

// commit executa os quatro passos do protocolo sob o lock do item.
// Exatamente um MovementRecord por requisição aceita; nenhum na rejeição.
func (c *Coordinator) commit(ctx context.Context, item *entity.StockItem, draft entity.MovementDraft) (*entity.MovementRecord, error) {
	if !entity.ValidMovementKind(draft.Kind) || draft.QuantityDelta.IsZero() {
		return nil, domain.ErrInvalidInput
	}

	lock := c.lockFor(item.ID)
	lock.Lock()
	defer lock.Unlock()

	// Cancelamento só vale antes do ponto de commit; depois do append a
	// reversão é sempre um movimento compensatório explícito.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Passos 1-3: leitura da projeção e política reject-on-insufficient.
	// O lock por item fecha a janela check-then-act entre leitores stale.
	proj := c.projector.Get(item.ID)
	result := proj.QuantityOnHand.Add(draft.QuantityDelta)
	if result.IsNegative() {
		c.log.Debug().
			Str("item", item.Code).
			Str("delta", draft.QuantityDelta.String()).
			Str("on_hand", proj.QuantityOnHand.String()).
			Msg("débito rejeitado por saldo insuficiente")
		return nil, domain.ErrInsufficientStock
	}

	// Passo 4a: append + checkpoint na mesma transação, com retry limitado.
	var rec *entity.MovementRecord
	err := withRetry(ctx, c.retry, func() error {
		return c.tx.Run(ctx, func(ledger repository.LedgerStore, projections repository.ProjectionRepository) error {
			// trava a linha do checkpoint durante a atribuição do sequence:
			// um segundo processo escritor serializa aqui em vez de duplicar
			prior, err := projections.GetForUpdate(ctx, item.ID)
			if err != nil {
				return err
			}
			r, err := ledger.Append(ctx, draft)
			if err != nil {
				return err
			}
			rec = r
			// saldo do checkpoint derivado dentro da transação: checkpoint
			// anterior + cauda do razão, nunca a projeção em memória (que
			// pode estar atrás do razão)
			onHand, err := checkpointBalance(ctx, ledger, prior, r)
			if err != nil {
				return err
			}
			return projections.Upsert(ctx, &entity.StockProjection{
				ItemID:              item.ID,
				QuantityOnHand:      onHand,
				LastSequenceApplied: r.Sequence,
				UpdatedAt:           r.CreatedAt,
			})
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, c.park(ctx, draft, err)
	}

	// Passo 4b: apply incremental; divergência dispara rebuild automático.
	if _, err := c.projector.ApplyIncremental(rec); err != nil {
		if errors.Is(err, domain.ErrOutOfOrder) {
			c.log.Warn().Err(err).Str("item", item.Code).Msg("projeção fora de ordem, disparando rebuild")
			if _, rbErr := c.projector.Rebuild(ctx, item.ID); rbErr != nil {
				return nil, fmt.Errorf("rebuild após divergência: %w", rbErr)
			}
		} else {
			return nil, err
		}
	}

	// Passo 4c: KPI + publicação, depois do commit completo.
	c.publish(ctx)

	c.log.Info().
		Str("item", item.Code).
		Str("kind", rec.Kind).
		Int64("sequence", rec.Sequence).
		Str("delta", rec.QuantityDelta.String()).
		Str("source_ref", rec.SourceRef).
		Msg("movimento commitado")
	return rec, nil
}

// checkpointBalance calcula o saldo a persistir: checkpoint anterior + fold
// da cauda do razão até o movimento recém-gravado. No caminho comum a cauda é
// só o próprio movimento; a releitura paginada cobre escritas no razão que
// ainda não chegaram ao checkpoint.
func checkpointBalance(ctx context.Context, ledger repository.LedgerStore, prior *entity.StockProjection, rec *entity.MovementRecord) (decimal.Decimal, error) {
	base := decimal.Zero
	var from int64
	if prior != nil {
		base = prior.QuantityOnHand
		from = prior.LastSequenceApplied
	}
	if from+1 == rec.Sequence {
		return base.Add(rec.QuantityDelta), nil
	}
	r := repository.MovementRange{FromSequence: from + 1, ToSequence: rec.Sequence, Limit: rebuildPageSize}
	for {
		movs, err := ledger.ListByItem(ctx, rec.ItemID, r)
		if err != nil {
			return decimal.Zero, fmt.Errorf("saldo do checkpoint: %w", err)
		}
		if len(movs) == 0 {
			break
		}
		base = domstock.Fold(base, movs)
		if len(movs) < rebuildPageSize {
			break
		}
		r.FromSequence = movs[len(movs)-1].Sequence + 1
	}
	return base, nil
}

// park estaciona o movimento na fila durável depois de esgotar os retries.
// O evento nunca é descartado e o chamador recebe ErrMovementParked: o fluxo
// que originou o débito NÃO pode prosseguir como se tivesse commitado.
func (c *Coordinator) park(ctx context.Context, draft entity.MovementDraft, cause error) error {
	pend := &entity.PendingMovement{
		ID:        uuid.New().String(),
		Draft:     draft,
		Attempts:  c.retry.Attempts,
		LastError: cause.Error(),
		ParkedAt:  time.Now(),
	}
	if saveErr := c.pending.Save(ctx, pend); saveErr != nil {
		// sem fila durável disponível, devolve os dois erros; alerta máximo
		c.log.Error().Err(saveErr).Str("item", draft.ItemID).Msg("falha ao estacionar movimento pendente")
		return fmt.Errorf("persistir movimento: %v (estacionar: %v): %w", cause, saveErr, domain.ErrMovementParked)
	}
	c.log.Error().Err(cause).
		Str("item", draft.ItemID).
		Str("pending_id", pend.ID).
		Msg("movimento estacionado após esgotar retries")
	return fmt.Errorf("persistir movimento: %v: %w", cause, domain.ErrMovementParked)
}

// publish recomputa o KPI sobre o estado corrente e publica o snapshot
// versionado. Erro ao listar o catálogo não desfaz o commit: loga e segue
// (o snapshot seguinte corrige).
func (c *Coordinator) publish(ctx context.Context) {
	items, err := c.items.List(ctx, false)
	if err != nil {
		c.log.Error().Err(err).Msg("listar catálogo para KPI")
		return
	}
	projections := c.projector.Snapshot()
	kpi := ComputeKpi(time.Now(), projections, items)
	c.broadcaster.Publish(projections, kpi)
}

// Publish força uma publicação fora do caminho de commit (startup, retomada).
func (c *Coordinator) Publish(ctx context.Context) {
	c.publish(ctx)
}
