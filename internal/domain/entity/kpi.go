package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de estoque por item, derivado do saldo e do estoque mínimo.
const (
	StockStatusNormal   = "NORMAL"
	StockStatusLow      = "LOW"      // saldo <= mínimo
	StockStatusCritical = "CRITICAL" // saldo <= metade do mínimo
	StockStatusZero     = "ZERO"
)

// ItemKpi é a leitura de KPI de um item dentro de um snapshot.
type ItemKpi struct {
	ItemID         string
	Code           string
	Name           string
	Unit           string
	QuantityOnHand decimal.Decimal
	Threshold      decimal.Decimal
	Status         string
	Value          decimal.Decimal // saldo × custo unitário
}

// KpiSnapshot é derivado e efêmero: função pura das projeções + catálogo.
// Nunca persiste como estado autoritativo; só cache para exibição.
type KpiSnapshot struct {
	GeneratedAt   time.Time
	Items         []ItemKpi
	CountNormal   int
	CountLow      int
	CountCritical int
	CountZero     int
	TotalValue    decimal.Decimal
}
