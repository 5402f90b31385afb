package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound          = errors.New("recurso não encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrConflict          = errors.New("conflito com o estado atual")
	ErrInsufficientStock = errors.New("estoque insuficiente")
	ErrItemArchived      = errors.New("item arquivado")

	// ErrOutOfOrder indica que o projetor recebeu um movimento fora de ordem.
	// Tratado internamente com rebuild; nunca chega ao usuário final.
	ErrOutOfOrder = errors.New("movimento fora de ordem")

	// ErrMovementParked indica que o movimento não pôde ser persistido após as
	// tentativas de retry e foi estacionado na fila de pendências. O fluxo de
	// produção que originou o evento NÃO deve prosseguir como se tivesse sido
	// debitado.
	ErrMovementParked = errors.New("movimento pendente de persistência")
)
