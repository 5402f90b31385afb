package stock

import (
	"github.com/shopspring/decimal"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
)

// two é constante de pacote para evitar alocação repetida na classificação.
var two = decimal.NewFromInt(2)

// ClassifyStatus implementa a classificação de status (serviço de domínio):
//
//	ZERO     se saldo == 0
//	CRITICAL se 0 < saldo <= mínimo/2
//	LOW      se mínimo/2 < saldo <= mínimo
//	NORMAL   caso contrário
//
// Itens sem mínimo configurado (<= 0) só distinguem ZERO de NORMAL.
func ClassifyStatus(onHand, minimumThreshold decimal.Decimal) string {
	if onHand.IsZero() {
		return entity.StockStatusZero
	}
	if minimumThreshold.LessThanOrEqual(decimal.Zero) {
		return entity.StockStatusNormal
	}
	half := minimumThreshold.Div(two)
	switch {
	case onHand.LessThanOrEqual(half):
		return entity.StockStatusCritical
	case onHand.LessThanOrEqual(minimumThreshold):
		return entity.StockStatusLow
	}
	return entity.StockStatusNormal
}

// Fold aplica a soma dos deltas de uma fatia de movimentos sobre um saldo
// inicial. Determinístico para um log ordenado: é a definição do invariante
// QuantityOnHand == Σ QuantityDelta.
func Fold(initial decimal.Decimal, movements []*entity.MovementRecord) decimal.Decimal {
	total := initial
	for _, m := range movements {
		total = total.Add(m.QuantityDelta)
	}
	return total
}
