package pnl

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

	snapshot := domain.PnLSnapshot{
		Time:     time.Now().UTC(),
		Balances: domain.Wallet{"zar": decimal.Zero, "btc": decimal.RequireFromString("0.5")},
		Prices:   map[string]decimal.Decimal{domain.PriceKey("btc", "zar"): decimal.NewFromInt(2000)},
		Totals:   map[string]decimal.Decimal{"zar": decimal.NewFromInt(1000)},
		PnL:      map[string]decimal.Decimal{"zar": decimal.Zero},
	}
	require.NoError(t, store.Append(snapshot))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	snapshots, err := reopened.All()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.True(t, snapshots[0].Balances["btc"].Equal(decimal.RequireFromString("0.5")))
	assert.True(t, snapshots[0].Prices["BTC_ZAR"].Equal(decimal.NewFromInt(2000)))
	assert.True(t, snapshots[0].Totals["zar"].Equal(decimal.NewFromInt(1000)))
}
