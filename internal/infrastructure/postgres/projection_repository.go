package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

var _ repository.ProjectionRepository = (*ProjectionRepo)(nil)

// ProjectionRepo checkpoint de projeções sobre PostgreSQL (usável com pool ou
// tx). Só cache de performance: a tabela inteira pode ser truncada e refeita
// reaplicando o razão.
type ProjectionRepo struct {
	q Querier
}

// NewProjectionRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewProjectionRepository(q Querier) *ProjectionRepo {
	return &ProjectionRepo{q: q}
}

func (r *ProjectionRepo) Get(ctx context.Context, itemID string) (*entity.StockProjection, error) {
	return r.get(ctx, itemID, "")
}

// GetForUpdate obtém a projeção travando a linha (SELECT FOR UPDATE);
// backstop da disciplina single-writer entre processos.
func (r *ProjectionRepo) GetForUpdate(ctx context.Context, itemID string) (*entity.StockProjection, error) {
	return r.get(ctx, itemID, " FOR UPDATE")
}

func (r *ProjectionRepo) get(ctx context.Context, itemID, suffix string) (*entity.StockProjection, error) {
	query := `
		SELECT item_id, quantity_on_hand, last_sequence_applied, updated_at
		FROM stock_projections WHERE item_id = $1` + suffix
	var p entity.StockProjection
	err := r.q.QueryRow(ctx, query, itemID).Scan(
		&p.ItemID, &p.QuantityOnHand, &p.LastSequenceApplied, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get projection: %w", err)
	}
	return &p, nil
}

// Upsert insere ou atualiza o checkpoint do item.
func (r *ProjectionRepo) Upsert(ctx context.Context, projection *entity.StockProjection) error {
	query := `
		INSERT INTO stock_projections (item_id, quantity_on_hand, last_sequence_applied, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (item_id)
		DO UPDATE SET quantity_on_hand = EXCLUDED.quantity_on_hand,
		              last_sequence_applied = EXCLUDED.last_sequence_applied,
		              updated_at = now()`
	_, err := r.q.Exec(ctx, query,
		projection.ItemID, projection.QuantityOnHand, projection.LastSequenceApplied)
	if err != nil {
		return fmt.Errorf("upsert projection: %w", err)
	}
	return nil
}

func (r *ProjectionRepo) List(ctx context.Context) ([]*entity.StockProjection, error) {
	rows, err := r.q.Query(ctx, `
		SELECT item_id, quantity_on_hand, last_sequence_applied, updated_at
		FROM stock_projections`)
	if err != nil {
		return nil, fmt.Errorf("list projections: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockProjection
	for rows.Next() {
		var p entity.StockProjection
		if err := rows.Scan(&p.ItemID, &p.QuantityOnHand, &p.LastSequenceApplied, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan projection: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
