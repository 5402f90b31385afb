package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

var _ repository.StockItemRepository = (*StockItemRepo)(nil)

const stockItemColumns = `id, code, name, category_id, unit, minimum_threshold, unit_cost, location, archived, created_at, updated_at`

// StockItemRepo leitura do catálogo sobre PostgreSQL. A tabela é mantida pelo
// módulo de catálogo; aqui só se consulta.
type StockItemRepo struct {
	q Querier
}

// NewStockItemRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewStockItemRepository(q Querier) *StockItemRepo {
	return &StockItemRepo{q: q}
}

func (r *StockItemRepo) GetByID(ctx context.Context, id string) (*entity.StockItem, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *StockItemRepo) GetByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	return r.getWhere(ctx, "code = $1", code)
}

func (r *StockItemRepo) getWhere(ctx context.Context, where string, arg any) (*entity.StockItem, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE ` + where
	var it entity.StockItem
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&it.ID, &it.Code, &it.Name, &it.CategoryID, &it.Unit,
		&it.MinimumThreshold, &it.UnitCost, &it.Location, &it.Archived,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return &it, nil
}

func (r *StockItemRepo) List(ctx context.Context, includeArchived bool) ([]*entity.StockItem, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items`
	if !includeArchived {
		query += ` WHERE archived = FALSE`
	}
	query += ` ORDER BY code`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stock items: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockItem
	for rows.Next() {
		var it entity.StockItem
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.CategoryID, &it.Unit,
			&it.MinimumThreshold, &it.UnitCost, &it.Location, &it.Archived,
			&it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}
