package stock

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/application/dto"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
)

var idealFactor = decimal.NewFromFloat(1.5)

// SuggestReplenishment deriva a lista de reposição a partir de um snapshot
// publicado: itens em LOW/CRITICAL/ZERO com a quantidade sugerida de pedido
// (estoque ideal = mínimo × 1.5) e custo estimado, ordenados do mais urgente
// para o menos. Função pura sobre o snapshot; nada de estado próprio.
func SuggestReplenishment(snap *Snapshot, items []*entity.StockItem) []dto.ReplenishmentSuggestionDTO {
	if snap == nil || snap.Kpi == nil {
		return []dto.ReplenishmentSuggestionDTO{}
	}
	costByID := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		costByID[item.ID] = item.UnitCost
	}

	out := make([]dto.ReplenishmentSuggestionDTO, 0)
	for _, k := range snap.Kpi.Items {
		if k.Status == entity.StockStatusNormal {
			continue
		}
		ideal := k.Threshold.Mul(idealFactor)
		suggested := ideal.Sub(k.QuantityOnHand)
		if suggested.LessThanOrEqual(decimal.Zero) {
			continue
		}
		cost := costByID[k.ItemID]
		out = append(out, dto.ReplenishmentSuggestionDTO{
			ItemID:             k.ItemID,
			Code:               k.Code,
			Name:               k.Name,
			QuantityOnHand:     k.QuantityOnHand,
			MinimumThreshold:   k.Threshold,
			IdealStock:         ideal,
			SuggestedOrderQty:  suggested,
			EstimatedOrderCost: suggested.Mul(cost),
			Status:             k.Status,
		})
	}

	// severidade primeiro (ZERO > CRITICAL > LOW), depois maior falta
	rank := map[string]int{
		entity.StockStatusZero:     0,
		entity.StockStatusCritical: 1,
		entity.StockStatusLow:      2,
	}
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i].Status] != rank[out[j].Status] {
			return rank[out[i].Status] < rank[out[j].Status]
		}
		return out[i].SuggestedOrderQty.GreaterThan(out[j].SuggestedOrderQty)
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out
}
