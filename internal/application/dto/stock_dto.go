package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterConsumptionRequest body para POST /api/stock/consumptions.
// Emitido pelo fluxo de produção ao INICIAR uma etapa que consome material.
type RegisterConsumptionRequest struct {
	ItemCode      string          `json:"item_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	ProductionRef string          `json:"production_ref"`
	Stage         string          `json:"stage"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
}

// RegisterEntryRequest body para POST /api/stock/entries (recebimento manual).
type RegisterEntryRequest struct {
	ItemCode  string          `json:"item_code"`
	Quantity  decimal.Decimal `json:"quantity"`
	SourceRef string          `json:"source_ref,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// RegisterExitRequest body para POST /api/stock/exits (requisição manual de
// material fora de ordem de produção).
type RegisterExitRequest struct {
	ItemCode  string          `json:"item_code"`
	Quantity  decimal.Decimal `json:"quantity"`
	SourceRef string          `json:"source_ref,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// RegisterAdjustmentRequest body para POST /api/stock/adjustments.
// Delta assinado; deltas negativos passam pela checagem de saldo.
type RegisterAdjustmentRequest struct {
	ItemCode      string          `json:"item_code"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"`
	SourceRef     string          `json:"source_ref,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// RegisterCompensationRequest body para POST /api/stock/compensations.
// Estorna um movimento já commitado criando o movimento oposto (nunca muta).
type RegisterCompensationRequest struct {
	MovementID string `json:"movement_id"`
	Note       string `json:"note,omitempty"`
}

// MovementResponse representação de um registro do razão.
type MovementResponse struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"item_id"`
	Sequence      int64           `json:"sequence"`
	Kind          string          `json:"kind"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceRef     string          `json:"source_ref,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// ProjectionResponse saldo derivado de um item.
type ProjectionResponse struct {
	ItemID              string          `json:"item_id"`
	QuantityOnHand      decimal.Decimal `json:"quantity_on_hand"`
	LastSequenceApplied int64           `json:"last_sequence_applied"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ItemKpiResponse leitura de KPI de um item.
type ItemKpiResponse struct {
	ItemID         string          `json:"item_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Unit           string          `json:"unit"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	Threshold      decimal.Decimal `json:"threshold"`
	Status         string          `json:"status"`
	Value          decimal.Decimal `json:"value"`
}

// SnapshotResponse visão versionada publicada pelo broadcaster.
type SnapshotResponse struct {
	Version       int64                `json:"version"`
	PublishedAt   time.Time            `json:"published_at"`
	Items         []ItemKpiResponse    `json:"items"`
	CountNormal   int                  `json:"count_normal"`
	CountLow      int                  `json:"count_low"`
	CountCritical int                  `json:"count_critical"`
	CountZero     int                  `json:"count_zero"`
	TotalValue    decimal.Decimal      `json:"total_value"`
	Projections   []ProjectionResponse `json:"projections"`
}

// KpiResponse agregado de KPI do snapshot publicado (sem as projeções).
type KpiResponse struct {
	Version       int64             `json:"version"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Items         []ItemKpiResponse `json:"items"`
	CountNormal   int               `json:"count_normal"`
	CountLow      int               `json:"count_low"`
	CountCritical int               `json:"count_critical"`
	CountZero     int               `json:"count_zero"`
	TotalValue    decimal.Decimal   `json:"total_value"`
}

// PendingMovementResponse movimento estacionado na fila de pendências.
type PendingMovementResponse struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"item_id"`
	Kind          string          `json:"kind"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"`
	SourceRef     string          `json:"source_ref,omitempty"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error"`
	ParkedAt      time.Time       `json:"parked_at"`
}

// ReplenishmentSuggestionDTO sugestão de reposição para um item abaixo do
// estoque mínimo.
type ReplenishmentSuggestionDTO struct {
	ItemID             string          `json:"item_id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	QuantityOnHand     decimal.Decimal `json:"quantity_on_hand"`
	MinimumThreshold   decimal.Decimal `json:"minimum_threshold"`
	IdealStock         decimal.Decimal `json:"ideal_stock"`          // MinimumThreshold * 1.5
	SuggestedOrderQty  decimal.Decimal `json:"suggested_order_qty"`  // IdealStock - QuantityOnHand
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"` // SuggestedOrderQty * UnitCost
	Status             string          `json:"status"`
	Priority           int             `json:"priority"` // 1 = mais urgente
}
