package repository

import (
	"context"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
)

// PendingRepository é a fila durável de movimentos estacionados após esgotar
// os retries de persistência. Visível ao operador; nunca descarta eventos.
type PendingRepository interface {
	Save(ctx context.Context, pending *entity.PendingMovement) error
	GetByID(ctx context.Context, id string) (*entity.PendingMovement, error)
	List(ctx context.Context) ([]*entity.PendingMovement, error)
	// Delete remove um pendente reprocessado com sucesso. Único delete do
	// motor: a fila de pendências não é razão, é sala de espera.
	Delete(ctx context.Context, id string) error
}
