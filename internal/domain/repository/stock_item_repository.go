package repository

import (
	"context"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
)

// StockItemRepository é a porta de leitura do catálogo (dados mestres).
// O CRUD do catálogo pertence a outro módulo; o motor só consome.
type StockItemRepository interface {
	GetByID(ctx context.Context, id string) (*entity.StockItem, error)
	GetByCode(ctx context.Context, code string) (*entity.StockItem, error)
	// List devolve todos os itens; includeArchived controla arquivados.
	List(ctx context.Context, includeArchived bool) ([]*entity.StockItem, error)
}
