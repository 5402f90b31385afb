package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

var _ repository.PendingRepository = (*PendingRepo)(nil)

// PendingRepo fila durável de movimentos estacionados sobre PostgreSQL.
type PendingRepo struct {
	q Querier
}

// NewPendingRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewPendingRepository(q Querier) *PendingRepo {
	return &PendingRepo{q: q}
}

func (r *PendingRepo) Save(ctx context.Context, pending *entity.PendingMovement) error {
	query := `
		INSERT INTO pending_movements (id, item_id, kind, quantity_delta, ts, source_ref, note, attempts, last_error, parked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET attempts = EXCLUDED.attempts, last_error = EXCLUDED.last_error`
	_, err := r.q.Exec(ctx, query,
		pending.ID, pending.Draft.ItemID, pending.Draft.Kind, pending.Draft.QuantityDelta,
		pending.Draft.Timestamp, pending.Draft.SourceRef, pending.Draft.Note,
		pending.Attempts, pending.LastError, pending.ParkedAt,
	)
	if err != nil {
		return fmt.Errorf("save pending movement: %w", err)
	}
	return nil
}

func (r *PendingRepo) GetByID(ctx context.Context, id string) (*entity.PendingMovement, error) {
	query := `
		SELECT id, item_id, kind, quantity_delta, ts, source_ref, note, attempts, last_error, parked_at
		FROM pending_movements WHERE id = $1`
	var p entity.PendingMovement
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Draft.ItemID, &p.Draft.Kind, &p.Draft.QuantityDelta,
		&p.Draft.Timestamp, &p.Draft.SourceRef, &p.Draft.Note,
		&p.Attempts, &p.LastError, &p.ParkedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending movement: %w", err)
	}
	return &p, nil
}

func (r *PendingRepo) List(ctx context.Context) ([]*entity.PendingMovement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, item_id, kind, quantity_delta, ts, source_ref, note, attempts, last_error, parked_at
		FROM pending_movements ORDER BY parked_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.PendingMovement
	for rows.Next() {
		var p entity.PendingMovement
		if err := rows.Scan(&p.ID, &p.Draft.ItemID, &p.Draft.Kind, &p.Draft.QuantityDelta,
			&p.Draft.Timestamp, &p.Draft.SourceRef, &p.Draft.Note,
			&p.Attempts, &p.LastError, &p.ParkedAt); err != nil {
			return nil, fmt.Errorf("scan pending movement: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

func (r *PendingRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM pending_movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pending movement: %w", err)
	}
	return nil
}
