package stock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/application/stock"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/infrastructure/memory"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de teste
// ──────────────────────────────────────────────────────────────────────────────

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

type engine struct {
	store       *memory.Store
	projector   *stock.Projector
	broadcaster *stock.Broadcaster
	coordinator *stock.Coordinator
}

// fastRetry encurta o backoff para os testes não dormirem.
func fastRetry() stock.RetryConfig {
	return stock.RetryConfig{Attempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}
}

// newEngine monta o motor completo sobre o adaptador em memória.
func newEngine(t *testing.T, tx stock.TxRunner, items ...*entity.StockItem) *engine {
	t.Helper()
	store := memory.NewStore()
	for _, item := range items {
		store.SeedItem(item)
	}
	if tx == nil {
		tx = memory.NewTxRunner(store)
	}
	projector := stock.NewProjector(store, store.Projections())
	broadcaster := stock.NewBroadcaster(4)
	coordinator := stock.NewCoordinator(tx, store.Items(), store.Pending(), projector, broadcaster, fastRetry(), logger.Nop())
	return &engine{store: store, projector: projector, broadcaster: broadcaster, coordinator: coordinator}
}

// chapa CH-001: 500 kg em estoque, mínimo 200 kg.
func chapaCH001() *entity.StockItem {
	return &entity.StockItem{
		ID:               "11111111-1111-1111-1111-111111111111",
		Code:             "CH-001",
		Name:             "Chapa de aço 3mm",
		Unit:             "kg",
		MinimumThreshold: dec("200"),
		UnitCost:         dec("12.50"),
	}
}

func seedEntry(t *testing.T, e *engine, code, qty string) {
	t.Helper()
	_, err := e.coordinator.RegisterEntry(context.Background(), code, dec(qty), "carga-inicial", "")
	require.NoError(t, err)
}

func onHand(e *engine, itemID string) decimal.Decimal {
	return e.projector.Get(itemID).QuantityOnHand
}

func kpiStatus(t *testing.T, e *engine, code string) string {
	t.Helper()
	snap := e.broadcaster.Current()
	require.NotNil(t, snap.Kpi)
	for _, k := range snap.Kpi.Items {
		if k.Code == code {
			return k.Status
		}
	}
	t.Fatalf("item %s ausente do KPI", code)
	return ""
}

// ──────────────────────────────────────────────────────────────────────────────
// Cenários A, B e C: consumo progressivo da chapa CH-001
// (500 kg, mínimo 200) até a rejeição por saldo insuficiente.
// ──────────────────────────────────────────────────────────────────────────────

func TestCoordinator_CenarioConsumoProgressivo(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "500")

	// Cenário A: consumir 350 kg -> 150 kg, status LOW (150 <= 200, > 100)
	rec, err := e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode:      "CH-001",
		Quantity:      dec("350"),
		ProductionRef: "OP-2031/peca-7",
		Stage:         "corte",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.MovementKindConsumption, rec.Kind)
	assert.True(t, rec.QuantityDelta.Equal(dec("-350")))
	assert.True(t, onHand(e, rec.ItemID).Equal(dec("150")))
	assert.Equal(t, entity.StockStatusLow, kpiStatus(t, e, "CH-001"))

	// Cenário B: consumir mais 80 kg -> 70 kg, status CRITICAL (70 <= 100)
	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("80"), ProductionRef: "OP-2031/peca-8", Stage: "corte",
	})
	require.NoError(t, err)
	assert.True(t, onHand(e, rec.ItemID).Equal(dec("70")))
	assert.Equal(t, entity.StockStatusCritical, kpiStatus(t, e, "CH-001"))

	// Cenário C: pedir 100 kg com 70 em mãos -> rejeitado, nada gravado
	before, err := e.store.LastSequence(ctx, rec.ItemID)
	require.NoError(t, err)
	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("100"), ProductionRef: "OP-2031/peca-9", Stage: "corte",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	after, err := e.store.LastSequence(ctx, rec.ItemID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejeição não pode gravar movimento")
	assert.True(t, onHand(e, rec.ItemID).Equal(dec("70")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Cenário D: crash entre o append e o apply — o rebuild reproduz o estado
// correto, provando que a projeção é cache derivado, não segunda fonte.
// ──────────────────────────────────────────────────────────────────────────────

func TestCoordinator_CenarioRecuperacaoPosCrash(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "500")
	itemID := chapaCH001().ID

	// Simula o crash: o movimento entra direto no razão, sem passar pelo
	// projetor (append commitou, apply nunca rodou).
	_, err := e.store.Append(ctx, entity.MovementDraft{
		ItemID:        itemID,
		Kind:          entity.MovementKindConsumption,
		QuantityDelta: dec("-120"),
		Timestamp:     time.Now(),
		SourceRef:     "OP-2040/peca-1",
	})
	require.NoError(t, err)

	// A projeção em memória ficou para trás.
	assert.True(t, onHand(e, itemID).Equal(dec("500")))

	// "Restart": rebuild a partir do razão.
	proj, err := e.projector.Rebuild(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, proj.QuantityOnHand.Equal(dec("380")))
	assert.EqualValues(t, 2, proj.LastSequenceApplied)

	// E o próximo consumo parte do estado correto.
	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("380"), ProductionRef: "OP-2040/peca-2",
	})
	require.NoError(t, err)
	assert.True(t, onHand(e, itemID).IsZero())
}

// Divergência detectada no apply dispara o rebuild automático do coordenador:
// um movimento gravado fora do fluxo normal não corrompe os commits seguintes.
func TestCoordinator_RebuildAutomaticoAposDivergencia(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "500")
	itemID := chapaCH001().ID

	// escrita fora de banda: o razão avança sem o projetor ver
	_, err := e.store.Append(ctx, entity.MovementDraft{
		ItemID:        itemID,
		Kind:          entity.MovementKindConsumption,
		QuantityDelta: dec("-120"),
		Timestamp:     time.Now(),
		SourceRef:     "OP-2060/peca-1",
	})
	require.NoError(t, err)
	assert.True(t, onHand(e, itemID).Equal(dec("500")), "projeção ainda não viu o movimento")

	// o próximo commit encontra o sequence não contíguo e reconverge sozinho
	// para a soma do razão
	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("10"), ProductionRef: "OP-2060/peca-2",
	})
	require.NoError(t, err)

	proj := e.projector.Get(itemID)
	assert.True(t, proj.QuantityOnHand.Equal(dec("370")), "500 - 120 - 10, obteve %s", proj.QuantityOnHand)
	assert.EqualValues(t, 3, proj.LastSequenceApplied)
}

// O saldo do checkpoint persistido vem do razão, não da projeção em memória:
// mesmo commitando sobre uma projeção atrasada, o checkpoint gravado é a soma
// exata do log — e um restart a partir dele reproduz o mesmo estado.
func TestCoordinator_CheckpointConsistenteComRazao(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "100")
	itemID := chapaCH001().ID

	// razão avança fora de banda; a projeção fica em 100
	_, err := e.store.Append(ctx, entity.MovementDraft{
		ItemID:        itemID,
		Kind:          entity.MovementKindConsumption,
		QuantityDelta: dec("-30"),
		Timestamp:     time.Now(),
	})
	require.NoError(t, err)

	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("10"), ProductionRef: "OP-2061/peca-1",
	})
	require.NoError(t, err)

	cp, err := e.store.Projections().Get(ctx, itemID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.QuantityOnHand.Equal(dec("60")), "100 - 30 - 10, obteve %s", cp.QuantityOnHand)
	assert.EqualValues(t, 3, cp.LastSequenceApplied)

	restored := stock.NewProjector(e.store, e.store.Projections())
	require.NoError(t, restored.Restore(ctx))
	assert.True(t, restored.Get(itemID).QuantityOnHand.Equal(dec("60")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Concorrência: débitos que somam exatamente o disponível passam todos;
// um a mais é rejeitado, nunca aplicado parcialmente.
// ──────────────────────────────────────────────────────────────────────────────

func TestCoordinator_ConcorrenciaSomaExata(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "100")
	itemID := chapaCH001().ID

	const workers = 11 // 10 cabem (10 kg cada), 1 sobra
	var ok, insufficient int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
				ItemCode: "CH-001", Quantity: dec("10"), ProductionRef: "OP-rush",
			})
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, domain.ErrInsufficientStock):
				atomic.AddInt64(&insufficient, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok, "todos os débitos que cabem devem passar exatamente uma vez")
	assert.EqualValues(t, 1, insufficient)
	assert.True(t, onHand(e, itemID).IsZero())

	// Invariante do fold após o interleaving arbitrário.
	rebuilt, err := e.projector.Rebuild(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, rebuilt.QuantityOnHand.IsZero())
}

// Itens diferentes nunca se serializam entre si: consumos paralelos em dois
// itens terminam ambos com o saldo exato.
func TestCoordinator_ItensIndependentesEmParalelo(t *testing.T) {
	outro := &entity.StockItem{
		ID: "22222222-2222-2222-2222-222222222222", Code: "TB-010",
		Name: "Tubo 2pol", Unit: "m", MinimumThreshold: dec("50"), UnitCost: dec("8"),
	}
	e := newEngine(t, nil, chapaCH001(), outro)
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "200")
	seedEntry(t, e, "TB-010", "200")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		code := "CH-001"
		if i%2 == 1 {
			code = "TB-010"
		}
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
				ItemCode: code, Quantity: dec("10"), ProductionRef: "OP-par",
			})
			assert.NoError(t, err)
		}(code)
	}
	wg.Wait()

	assert.True(t, onHand(e, chapaCH001().ID).Equal(dec("100")))
	assert.True(t, onHand(e, outro.ID).Equal(dec("100")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Validação e política de rejeição
// ──────────────────────────────────────────────────────────────────────────────

func TestCoordinator_Validacao(t *testing.T) {
	arquivado := &entity.StockItem{
		ID: "33333333-3333-3333-3333-333333333333", Code: "AR-900",
		Name: "Perfil descontinuado", Unit: "un", Archived: true,
	}
	e := newEngine(t, nil, chapaCH001(), arquivado)
	ctx := context.Background()

	_, err := e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{ItemCode: "NAO-EXISTE", Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{ItemCode: "CH-001", Quantity: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{ItemCode: "CH-001", Quantity: dec("-5")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{ItemCode: "AR-900", Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrItemArchived)

	_, err = e.coordinator.RegisterAdjustment(ctx, "CH-001", decimal.Zero, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Saída manual passa pela checagem de saldo como qualquer débito.
func TestCoordinator_SaidaManual(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "100")

	rec, err := e.coordinator.RegisterExit(ctx, "CH-001", dec("40"), "requisicao/almoxarifado-12", "")
	require.NoError(t, err)
	assert.Equal(t, entity.MovementKindExit, rec.Kind)
	assert.True(t, rec.QuantityDelta.Equal(dec("-40")))
	assert.True(t, onHand(e, rec.ItemID).Equal(dec("60")))

	_, err = e.coordinator.RegisterExit(ctx, "CH-001", dec("61"), "requisicao/almoxarifado-13", "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

// Entradas nunca falham a checagem de saldo, mesmo sobre item zerado.
func TestCoordinator_EntradaSempreAceita(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	rec, err := e.coordinator.RegisterEntry(context.Background(), "CH-001", dec("0.5"), "NF-1234", "recebimento parcial")
	require.NoError(t, err)
	assert.Equal(t, entity.MovementKindEntry, rec.Kind)
	assert.True(t, onHand(e, rec.ItemID).Equal(dec("0.5")))
}

// Cancelamento vale só antes do ponto de commit: contexto cancelado não
// grava nada.
func TestCoordinator_CancelamentoAntesDoCommit(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	seedEntry(t, e, "CH-001", "100")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("10"), ProductionRef: "OP-cancelada",
	})
	require.ErrorIs(t, err, context.Canceled)

	last, err := e.store.LastSequence(context.Background(), chapaCH001().ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, last, "só a carga inicial pode existir")
}

// ──────────────────────────────────────────────────────────────────────────────
// Estorno (corte cancelado depois de iniciado): movimento compensatório
// explícito, nunca mutação do original.
// ──────────────────────────────────────────────────────────────────────────────

func TestCoordinator_EstornoDeCorteCancelado(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "500")

	rec, err := e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("120"), ProductionRef: "OP-2050/peca-3", Stage: "corte",
	})
	require.NoError(t, err)
	assert.True(t, onHand(e, rec.ItemID).Equal(dec("380")))

	comp, err := e.coordinator.RegisterCompensation(ctx, rec.ID, "corte cancelado pelo PCP")
	require.NoError(t, err)
	assert.Equal(t, entity.MovementKindAdjustment, comp.Kind)
	assert.True(t, comp.QuantityDelta.Equal(dec("120")))
	assert.Equal(t, rec.ID, comp.SourceRef, "estorno referencia o movimento original")
	assert.True(t, onHand(e, rec.ItemID).Equal(dec("500")))

	// O original permanece intacto no razão (auditoria).
	original, err := e.store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, original)
	assert.True(t, original.QuantityDelta.Equal(dec("-120")))

	_, err = e.coordinator.RegisterCompensation(ctx, "inexistente", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Item arquivado depois do débito: o estorno também é rejeitado (mesma
// política do fluxo normal — item fora do catálogo ativo não movimenta).
func TestCoordinator_EstornoDeItemArquivado(t *testing.T) {
	e := newEngine(t, nil, chapaCH001())
	ctx := context.Background()
	seedEntry(t, e, "CH-001", "500")

	rec, err := e.coordinator.RegisterConsumption(ctx, entity.ConsumptionEvent{
		ItemCode: "CH-001", Quantity: dec("50"), ProductionRef: "OP-2070/peca-1",
	})
	require.NoError(t, err)

	arquivado := chapaCH001()
	arquivado.Archived = true
	e.store.SeedItem(arquivado)

	_, err = e.coordinator.RegisterCompensation(ctx, rec.ID, "")
	assert.ErrorIs(t, err, domain.ErrItemArchived)
}

// ──────────────────────────────────────────────────────────────────────────────
// Falha de persistência: retry com backoff e estacionamento na fila durável
// ──────────────────────────────────────────────────────────────────────────────

// flakyTx falha as N primeiras execuções e depois delega ao runner real.
type flakyTx struct {
	inner    stock.TxRunner
	failures int32
}

func (f *flakyTx) Run(ctx context.Context, fn func(
	ledger repository.LedgerStore,
	projections repository.ProjectionRepository,
) error) error {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return errors.New("conexão recusada")
	}
	return f.inner.Run(ctx, fn)
}

func TestCoordinator_RetryVenceFalhaTransitoria(t *testing.T) {
	store := memory.NewStore()
	store.SeedItem(chapaCH001())
	// 2 falhas com 3 tentativas: a terceira commita
	tx := &flakyTx{inner: memory.NewTxRunner(store), failures: 2}
	projector := stock.NewProjector(store, store.Projections())
	coordinator := stock.NewCoordinator(tx, store.Items(), store.Pending(), projector, stock.NewBroadcaster(1), fastRetry(), logger.Nop())

	rec, err := coordinator.RegisterEntry(context.Background(), "CH-001", dec("50"), "NF-9", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Sequence)
}

func TestCoordinator_EsgotouRetriesEstaciona(t *testing.T) {
	store := memory.NewStore()
	store.SeedItem(chapaCH001())
	// mais falhas que tentativas: estaciona
	tx := &flakyTx{inner: memory.NewTxRunner(store), failures: 99}
	projector := stock.NewProjector(store, store.Projections())
	coordinator := stock.NewCoordinator(tx, store.Items(), store.Pending(), projector, stock.NewBroadcaster(1), fastRetry(), logger.Nop())
	ctx := context.Background()

	_, err := coordinator.RegisterEntry(ctx, "CH-001", dec("50"), "NF-10", "")
	require.ErrorIs(t, err, domain.ErrMovementParked, "o chamador precisa saber que NÃO commitou")

	parked, err := store.Pending().List(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, chapaCH001().ID, parked[0].Draft.ItemID)
	assert.NotEmpty(t, parked[0].LastError)

	// Nada chegou ao razão.
	last, err := store.LastSequence(ctx, chapaCH001().ID)
	require.NoError(t, err)
	assert.Zero(t, last)

	// Banco voltou: o reprocessamento commita e limpa a fila.
	atomic.StoreInt32(&tx.failures, 0)
	rec, err := coordinator.RetryPending(ctx, parked[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Sequence)

	parked, err = store.Pending().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked)
}

// Item arquivado enquanto o movimento esperava na fila: o reprocessamento
// revalida o catálogo e rejeita, sem consumir o pendente.
func TestCoordinator_RetryPendenteDeItemArquivado(t *testing.T) {
	store := memory.NewStore()
	store.SeedItem(chapaCH001())
	tx := &flakyTx{inner: memory.NewTxRunner(store), failures: 99}
	projector := stock.NewProjector(store, store.Projections())
	coordinator := stock.NewCoordinator(tx, store.Items(), store.Pending(), projector, stock.NewBroadcaster(1), fastRetry(), logger.Nop())
	ctx := context.Background()

	_, err := coordinator.RegisterEntry(ctx, "CH-001", dec("50"), "NF-11", "")
	require.ErrorIs(t, err, domain.ErrMovementParked)
	parked, err := store.Pending().List(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)

	arquivado := chapaCH001()
	arquivado.Archived = true
	store.SeedItem(arquivado)
	atomic.StoreInt32(&tx.failures, 0)

	_, err = coordinator.RetryPending(ctx, parked[0].ID)
	assert.ErrorIs(t, err, domain.ErrItemArchived)

	parked, err = store.Pending().List(ctx)
	require.NoError(t, err)
	assert.Len(t, parked, 1, "pendente rejeitado permanece na fila")
}
