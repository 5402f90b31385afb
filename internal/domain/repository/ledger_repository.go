package repository

import (
	"context"
	"time"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
)

// MovementRange delimita uma consulta ao razão. Zero values significam
// "sem limite" naquele eixo; Limit <= 0 usa o padrão do adaptador.
type MovementRange struct {
	FromSequence int64
	ToSequence   int64
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// LedgerStore é a porta do razão append-only, única fonte de verdade.
//
// Invariantes:
//   - Append-only: sem Update, sem Delete.
//   - Append atribui o próximo Sequence do item atomicamente; dois registros
//     do mesmo item nunca compartilham sequence (ponto de linearização).
//   - Correções são movimentos compensatórios novos, nunca mutação.
type LedgerStore interface {
	// Append persiste o rascunho e devolve o registro com ID e Sequence
	// atribuídos. Falhas de persistência são retryáveis pelo chamador.
	Append(ctx context.Context, draft entity.MovementDraft) (*entity.MovementRecord, error)

	// GetByID devolve um movimento pelo ID (nil, nil se não existir).
	GetByID(ctx context.Context, id string) (*entity.MovementRecord, error)

	// ListByItem devolve movimentos do item ordenados por Sequence crescente,
	// paginável e reiniciável (auditoria e rebuild).
	ListByItem(ctx context.Context, itemID string, r MovementRange) ([]*entity.MovementRecord, error)

	// LastSequence devolve o último sequence atribuído ao item (0 se nenhum).
	LastSequence(ctx context.Context, itemID string) (int64, error)
}
