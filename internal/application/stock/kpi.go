package stock

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	domstock "github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/stock"
)

// ComputeKpi é função pura: projeções + catálogo -> snapshot de KPI.
// Totais recalculados por inteiro a cada chamada, de propósito: correção
// (zero drift) importa mais que micro-latência nesta camada. Itens
// arquivados ficam fora; item sem movimento conta como saldo zero.
func ComputeKpi(now time.Time, projections []*entity.StockProjection, items []*entity.StockItem) *entity.KpiSnapshot {
	byItem := make(map[string]*entity.StockProjection, len(projections))
	for _, proj := range projections {
		byItem[proj.ItemID] = proj
	}

	snap := &entity.KpiSnapshot{
		GeneratedAt: now,
		Items:       make([]entity.ItemKpi, 0, len(items)),
		TotalValue:  decimal.Zero,
	}
	for _, item := range items {
		if item.Archived {
			continue
		}
		onHand := decimal.Zero
		if proj, ok := byItem[item.ID]; ok {
			onHand = proj.QuantityOnHand
		}
		status := domstock.ClassifyStatus(onHand, item.MinimumThreshold)
		value := onHand.Mul(item.UnitCost)

		snap.Items = append(snap.Items, entity.ItemKpi{
			ItemID:         item.ID,
			Code:           item.Code,
			Name:           item.Name,
			Unit:           item.Unit,
			QuantityOnHand: onHand,
			Threshold:      item.MinimumThreshold,
			Status:         status,
			Value:          value,
		})
		snap.TotalValue = snap.TotalValue.Add(value)
		switch status {
		case entity.StockStatusZero:
			snap.CountZero++
		case entity.StockStatusCritical:
			snap.CountCritical++
		case entity.StockStatusLow:
			snap.CountLow++
		default:
			snap.CountNormal++
		}
	}
	// ordem estável por código para as telas
	sort.Slice(snap.Items, func(i, j int) bool { return snap.Items[i].Code < snap.Items[j].Code })
	return snap
}
