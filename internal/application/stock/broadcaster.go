package stock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
)

// Snapshot é a visão imutável e versionada entregue aos observadores:
// projeções + KPI de um mesmo instante, nunca um estado meio-atualizado.
// Compartilhado por ponteiro; ninguém escreve depois de publicado.
type Snapshot struct {
	Version     int64
	PublishedAt time.Time
	Projections []*entity.StockProjection
	Kpi         *entity.KpiSnapshot
}

// Broadcaster publica snapshots versionados para N assinantes (páginas de UI,
// outros módulos). Copy-on-write: leitores continuam no snapshot anterior
// enquanto o novo é montado; Publish só acontece depois do commit completo
// do coordenador. Leituras nunca bloqueiam o escritor.
type Broadcaster struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	subs    map[uint64]chan *Snapshot
	nextSub uint64
	version int64
	buffer  int
}

// NewBroadcaster constrói o broadcaster. buffer é a profundidade do canal de
// cada assinante (mínimo 1).
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	b := &Broadcaster{
		subs:   make(map[uint64]chan *Snapshot),
		buffer: buffer,
	}
	b.current.Store(&Snapshot{PublishedAt: time.Now()})
	return b
}

// Current devolve o último snapshot publicado (leitura one-shot, sem lock de
// escrita). Pode estar atrás do último commit em até um ciclo de publicação —
// defasagem aceita por contrato; o razão continua sendo a fonte de verdade.
func (b *Broadcaster) Current() *Snapshot {
	return b.current.Load()
}

// Publish monta e publica um snapshot novo e o entrega a todos os assinantes.
// Assinante lento não bloqueia: o snapshot mais antigo do seu buffer é
// descartado em favor do mais novo (último estado é o que importa na UI).
func (b *Broadcaster) Publish(projections []*entity.StockProjection, kpi *entity.KpiSnapshot) *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.version++
	snap := &Snapshot{
		Version:     b.version,
		PublishedAt: time.Now(),
		Projections: projections,
		Kpi:         kpi,
	}
	b.current.Store(snap)

	for _, ch := range b.subs {
		for {
			select {
			case ch <- snap:
			default:
				// buffer cheio: derruba o mais antigo e tenta de novo
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
	return snap
}

// Subscribe registra um assinante e devolve o canal de snapshots e a função
// de cancelamento. O snapshot corrente é entregue imediatamente para o
// assinante não começar às cegas.
func (b *Broadcaster) Subscribe() (<-chan *Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan *Snapshot, b.buffer)
	b.subs[id] = ch

	if cur := b.current.Load(); cur != nil {
		ch <- cur
	}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Subscribers devolve o número de assinantes ativos (observabilidade).
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
