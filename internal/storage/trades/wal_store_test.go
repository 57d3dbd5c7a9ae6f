package trades

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/paperbot/internal/domain"
)

func TestWALStore_AppendAndAll(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	buy := domain.NewTradeRecord(time.Now(), "XBTZAR", domain.ActionBuy,
		decimal.NewFromInt(97), decimal.RequireFromString("10.309278"), decimal.NewFromInt(1000))
	sell := domain.NewTradeRecord(time.Now(), "XBTZAR", domain.ActionSell,
		decimal.NewFromInt(101), decimal.RequireFromString("10.309278"), decimal.RequireFromString("1041.237078"))

	require.NoError(t, store.Append(buy))
	require.NoError(t, store.Append(sell))
	assert.Equal(t, uint64(2), store.CurrentIndex())

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, buy.ID, records[0].ID)
	assert.Equal(t, domain.ActionBuy, records[0].Action)
	assert.True(t, records[0].Price.Equal(decimal.NewFromInt(97)))
	assert.Equal(t, domain.ActionSell, records[1].Action)
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err = reopened.All()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWALStore_AppendRequiresPair(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	err = store.Append(domain.TradeRecord{})
	assert.Error(t, err)
	assert.Equal(t, uint64(0), store.CurrentIndex())
}

func TestWALStore_NilStore(t *testing.T) {
	var store *WALStore
	assert.Error(t, store.Append(domain.TradeRecord{Pair: "BTCUSDT"}))
	assert.Equal(t, uint64(0), store.CurrentIndex())
}
