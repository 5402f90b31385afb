package entity

import "time"

// PendingMovement é um movimento aceito pelo coordenador mas que esgotou as
// tentativas de persistência. Fica estacionado (nunca descartado) até um
// operador reprocessar; aparece nas telas como "sincronização pendente".
type PendingMovement struct {
	ID        string
	Draft     MovementDraft
	Attempts  int
	LastError string
	ParkedAt  time.Time
}
