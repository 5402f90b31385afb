package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItem representa um material do catálogo (dados mestres, read-mostly).
// O motor do razão trata o catálogo como colaborador externo: aqui só se lê.
// Itens nunca são excluídos, apenas arquivados (preserva o histórico).
type StockItem struct {
	ID               string
	Code             string // código visível (ex.: CH-001)
	Name             string
	CategoryID       string
	Unit             string // kg, m, un...
	MinimumThreshold decimal.Decimal
	UnitCost         decimal.Decimal
	Location         string
	Archived         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
