package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbol(t *testing.T) {
	sym, err := ParseSymbol(" btc_zar ", "XBTZAR")
	require.NoError(t, err)
	assert.Equal(t, "BTC_ZAR", sym.Key)
	assert.Equal(t, "btc", sym.Coin)
	assert.Equal(t, "zar", sym.Base)
	assert.Equal(t, "XBTZAR", sym.Pair.Symbol())
	assert.Equal(t, "BTC_ZAR", sym.Pair.String())

	for _, key := range []string{"BTCZAR", "BTC_", "_ZAR", "A_B_C", "", "usdt_USDT"} {
		_, err := ParseSymbol(key, "")
		assert.Error(t, err, key)
	}
}

func TestPairSymbolFallsBackToConcatenation(t *testing.T) {
	p := Pair{From: "ETH", To: "USDT"}
	assert.Equal(t, "ETHUSDT", p.Symbol())
}

func TestActionText(t *testing.T) {
	for _, a := range []Action{ActionBuy, ActionSell} {
		text, err := a.MarshalText()
		require.NoError(t, err)

		var back Action
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, a, back)
	}

	var a Action
	assert.Error(t, a.UnmarshalText([]byte("HOLD")))
}

func TestTradeRecordString(t *testing.T) {
	tr := NewTradeRecord(time.Unix(0, 0), "XBTZAR", ActionBuy,
		decimal.NewFromInt(97), decimal.NewFromInt(1000).Div(decimal.NewFromInt(97)), decimal.NewFromInt(1000))

	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "[XBTZAR] BUY 10.309278 at 97.00", tr.String())
}

func TestWalletCopyIsIndependent(t *testing.T) {
	w := Wallet{"zar": decimal.NewFromInt(10)}
	c := w.Copy()
	c["zar"] = decimal.Zero

	assert.True(t, w.Balance("zar").Equal(decimal.NewFromInt(10)))
	assert.True(t, w.Balance("btc").IsZero())
	assert.Equal(t, "ETH_ZAR", PriceKey("eth", "zar"))
}
