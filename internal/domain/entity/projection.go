package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockProjection é o saldo derivado de um item: fold do razão ordenado por
// Sequence. Invariante: QuantityOnHand == Σ QuantityDelta dos movimentos do
// item. Reconstruível do zero a qualquer momento; nunca é fonte de verdade.
type StockProjection struct {
	ItemID              string
	QuantityOnHand      decimal.Decimal
	LastSequenceApplied int64
	UpdatedAt           time.Time
}

// Clone devolve uma cópia independente (snapshots copy-on-write).
func (p *StockProjection) Clone() *StockProjection {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
