package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsumptionEvent é o sinal vindo do fluxo de produção: uma etapa de corte
// iniciou e consome material. Não é persistido como está; vira MovementRecord
// somente se o coordenador aceitar o débito.
type ConsumptionEvent struct {
	ItemCode      string
	Quantity      decimal.Decimal // sempre positiva; o coordenador aplica o sinal
	ProductionRef string          // id da peça/ordem de produção
	Stage         string          // etapa do fluxo (ex.: corte)
	Timestamp     time.Time
}
