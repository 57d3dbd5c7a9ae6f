package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PnLSnapshot point-in-time portfolio valuation.
// A zero entry in Prices means the price was unavailable, not that the coin is worthless.
type PnLSnapshot struct {
	Time     time.Time                  `json:"ts"`
	Balances Wallet                     `json:"balances"`
	Prices   map[string]decimal.Decimal `json:"prices"`
	Totals   map[string]decimal.Decimal `json:"totals"`
	PnL      map[string]decimal.Decimal `json:"pnl"`
}

// PriceKey returns the Prices key for a coin valued in a base currency, e.g. BTC_ZAR.
func PriceKey(coin, base string) string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(coin), strings.ToUpper(base))
}
