package stock

import (
	"context"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

// TxRunner executa uma função dentro de uma transação de persistência,
// passando o razão e o checkpoint de projeções atados a essa transação.
// Garante que append e checkpoint commitam (ou revertem) juntos.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		ledger repository.LedgerStore,
		projections repository.ProjectionRepository,
	) error) error
}
