package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

var _ repository.LedgerStore = (*LedgerRepo)(nil)

// LedgerRepo implementação do razão sobre PostgreSQL (usável com pool ou tx).
// Append deve rodar dentro de transação (via TxRunner) para que a atribuição
// do sequence e o insert commitem juntos.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

// Append calcula o próximo sequence do item e insere o movimento. A exclusão
// entre chamadores do mesmo processo vem do lock por item do coordenador; o
// UNIQUE (item_id, sequence) faz um segundo processo escritor falhar alto em
// vez de duplicar sequence.
func (r *LedgerRepo) Append(ctx context.Context, draft entity.MovementDraft) (*entity.MovementRecord, error) {
	var last int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM stock_movements WHERE item_id = $1`,
		draft.ItemID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("next sequence: %w", err)
	}

	rec := &entity.MovementRecord{
		ID:            uuid.New().String(),
		ItemID:        draft.ItemID,
		Sequence:      last + 1,
		Kind:          draft.Kind,
		QuantityDelta: draft.QuantityDelta,
		Timestamp:     draft.Timestamp,
		SourceRef:     draft.SourceRef,
		Note:          draft.Note,
	}
	err = r.q.QueryRow(ctx, `
		INSERT INTO stock_movements (id, item_id, sequence, kind, quantity_delta, ts, source_ref, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		rec.ID, rec.ItemID, rec.Sequence, rec.Kind, rec.QuantityDelta,
		rec.Timestamp, rec.SourceRef, rec.Note,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append movement: %w", err)
	}
	return rec, nil
}

// GetByID obtém um movimento pelo ID (nil, nil se não existir).
func (r *LedgerRepo) GetByID(ctx context.Context, id string) (*entity.MovementRecord, error) {
	query := `
		SELECT id, item_id, sequence, kind, quantity_delta, ts, source_ref, note, created_at
		FROM stock_movements WHERE id = $1`
	var m entity.MovementRecord
	err := r.q.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.ItemID, &m.Sequence, &m.Kind, &m.QuantityDelta,
		&m.Timestamp, &m.SourceRef, &m.Note, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &m, nil
}

// ListByItem lista movimentos do item ordenados por sequence crescente,
// com filtros de range e paginação.
func (r *LedgerRepo) ListByItem(ctx context.Context, itemID string, rng repository.MovementRange) ([]*entity.MovementRecord, error) {
	query := `
		SELECT id, item_id, sequence, kind, quantity_delta, ts, source_ref, note, created_at
		FROM stock_movements WHERE item_id = $1`
	args := []any{itemID}
	pos := 2
	if rng.FromSequence > 0 {
		query += fmt.Sprintf(" AND sequence >= $%d", pos)
		args = append(args, rng.FromSequence)
		pos++
	}
	if rng.ToSequence > 0 {
		query += fmt.Sprintf(" AND sequence <= $%d", pos)
		args = append(args, rng.ToSequence)
		pos++
	}
	if rng.From != nil {
		query += fmt.Sprintf(" AND ts >= $%d", pos)
		args = append(args, *rng.From)
		pos++
	}
	if rng.To != nil {
		query += fmt.Sprintf(" AND ts <= $%d", pos)
		args = append(args, *rng.To)
		pos++
	}
	limit := rng.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY sequence ASC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, rng.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list by item: %w", err)
	}
	defer rows.Close()
	var list []*entity.MovementRecord
	for rows.Next() {
		var m entity.MovementRecord
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Sequence, &m.Kind, &m.QuantityDelta,
			&m.Timestamp, &m.SourceRef, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

// LastSequence devolve o último sequence atribuído ao item (0 se nenhum).
func (r *LedgerRepo) LastSequence(ctx context.Context, itemID string) (int64, error) {
	var last int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM stock_movements WHERE item_id = $1`,
		itemID,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last sequence: %w", err)
	}
	return last, nil
}
