package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

func draft(itemID string, delta int64) entity.MovementDraft {
	return entity.MovementDraft{
		ItemID:        itemID,
		Kind:          entity.MovementKindEntry,
		QuantityDelta: decimal.NewFromInt(delta),
		Timestamp:     time.Now(),
	}
}

func TestStore_AppendAtribuiSequenceContiguo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		rec, err := s.Append(ctx, draft("item-a", 10))
		require.NoError(t, err)
		assert.EqualValues(t, i, rec.Sequence)
		assert.NotEmpty(t, rec.ID)
	}
	// streams independentes por item
	rec, err := s.Append(ctx, draft("item-b", 5))
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Sequence)

	last, err := s.LastSequence(ctx, "item-a")
	require.NoError(t, err)
	assert.EqualValues(t, 3, last)
}

// Appends concorrentes no mesmo item nunca repetem nem pulam sequence.
func TestStore_AppendConcorrenteSemBuracos(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	const n = 200
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.Append(ctx, draft("item-a", 1))
			assert.NoError(t, err)
			seen <- rec.Sequence
		}()
	}
	wg.Wait()
	close(seen)

	got := make(map[int64]bool, n)
	for seq := range seen {
		assert.False(t, got[seq], "sequence %d repetido", seq)
		got[seq] = true
	}
	for i := int64(1); i <= n; i++ {
		assert.True(t, got[i], "sequence %d ausente", i)
	}
}

func TestStore_GetByID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec, err := s.Append(ctx, draft("item-a", 7))
	require.NoError(t, err)

	found, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.QuantityDelta.Equal(decimal.NewFromInt(7)))

	missing, err := s.GetByID(ctx, "nao-existe")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ListByItemFiltraEPagina(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		d := draft("item-a", int64(i+1))
		d.Timestamp = base.Add(time.Duration(i) * time.Hour)
		_, err := s.Append(ctx, d)
		require.NoError(t, err)
	}

	// range de sequence
	movs, err := s.ListByItem(ctx, "item-a", repository.MovementRange{FromSequence: 3, ToSequence: 5})
	require.NoError(t, err)
	require.Len(t, movs, 3)
	assert.EqualValues(t, 3, movs[0].Sequence)
	assert.EqualValues(t, 5, movs[2].Sequence)

	// janela de tempo: horas 2..4 (sequences 3..5)
	from := base.Add(2 * time.Hour)
	to := base.Add(4 * time.Hour)
	movs, err = s.ListByItem(ctx, "item-a", repository.MovementRange{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, movs, 3)

	// paginação
	movs, err = s.ListByItem(ctx, "item-a", repository.MovementRange{Limit: 4, Offset: 8})
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.EqualValues(t, 9, movs[0].Sequence)

	// offset além do fim
	movs, err = s.ListByItem(ctx, "item-a", repository.MovementRange{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, movs)
}

// As views devolvem cópias: mutar o que saiu do store não muda o que está
// dentro dele.
func TestStore_LeituraDevolveCopia(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.SeedItem(&entity.StockItem{ID: "i1", Code: "CH-001", Name: "Chapa"})

	item, err := s.Items().GetByID(ctx, "i1")
	require.NoError(t, err)
	item.Name = "mutado"

	again, err := s.Items().GetByID(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Chapa", again.Name)

	rec, err := s.Append(ctx, draft("i1", 3))
	require.NoError(t, err)
	rec.QuantityDelta = decimal.NewFromInt(999)

	stored, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.QuantityDelta.Equal(decimal.NewFromInt(3)))
}

func TestTxRunner_PropagaErroDaFuncao(t *testing.T) {
	s := NewStore()
	tx := NewTxRunner(s)

	sentinel := assert.AnError
	err := tx.Run(context.Background(), func(repository.LedgerStore, repository.ProjectionRepository) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
