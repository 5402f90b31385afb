package repository

import (
	"context"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
)

// ProjectionRepository é o checkpoint persistido das projeções. É só cache de
// performance: sempre reconstruível reaplicando o razão desde o sequence 0.
type ProjectionRepository interface {
	Get(ctx context.Context, itemID string) (*entity.StockProjection, error)
	// GetForUpdate obtém a projeção travando a linha (backstop da disciplina
	// single-writer quando houver mais de um processo escritor).
	GetForUpdate(ctx context.Context, itemID string) (*entity.StockProjection, error)
	Upsert(ctx context.Context, projection *entity.StockProjection) error
	List(ctx context.Context) ([]*entity.StockProjection, error)
}
