package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimento do razão (variante fechada; nada de mapas dinâmicos).
const (
	MovementKindEntry       = "ENTRY"       // recebimento de material
	MovementKindExit        = "EXIT"        // saída manual
	MovementKindConsumption = "CONSUMPTION" // consumo por ordem de produção (corte)
	MovementKindAdjustment  = "ADJUSTMENT"  // ajuste/estorno (sinal livre)
)

// ValidMovementKind informa se o tipo pertence à variante fechada.
func ValidMovementKind(kind string) bool {
	switch kind {
	case MovementKindEntry, MovementKindExit, MovementKindConsumption, MovementKindAdjustment:
		return true
	}
	return false
}

// MovementRecord é um fato imutável do razão: criado uma vez, nunca alterado
// ou excluído. Correções entram como movimentos compensatórios novos, com
// SourceRef apontando para o movimento original.
type MovementRecord struct {
	ID            string
	ItemID        string
	Sequence      int64 // monotônico por item; atribuído pelo razão no append
	Kind          string
	QuantityDelta decimal.Decimal // assinado: negativo para saída/consumo
	Timestamp     time.Time
	SourceRef     string // ordem/peça de produção, ator manual ou movimento compensado
	Note          string
	CreatedAt     time.Time
}

// MovementDraft é o movimento antes do append: sem ID nem Sequence, que são
// atribuídos atomicamente pelo Ledger Store (ponto de linearização).
type MovementDraft struct {
	ItemID        string
	Kind          string
	QuantityDelta decimal.Decimal
	Timestamp     time.Time
	SourceRef     string
	Note          string
}
