// Package domain defines core data structures used throughout the trading bot.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Pair tradable coin-versus-base-currency combination.
type Pair struct {
	// From coin symbol, e.g. BTC.
	From string
	// To base currency symbol, e.g. ZAR.
	To string
	// Ticker exchange-specific identifier, e.g. XBTZAR. Optional.
	Ticker string
}

// String returns the string representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the identifier used to query price sources.
func (p *Pair) Symbol() string {
	if p.Ticker != "" {
		return p.Ticker
	}
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// Symbol is an immutable per-monitor symbol configuration.
type Symbol struct {
	// Key configured symbol key, e.g. BTC_ZAR.
	Key string
	// Coin lower-case wallet asset bought on a dip, e.g. btc.
	Coin string
	// Base lower-case settlement asset, e.g. zar.
	Base string
	Pair Pair
}

// ParseSymbol builds a Symbol from a COIN_BASE key and an exchange ticker.
func ParseSymbol(key, ticker string) (Symbol, error) {
	parts := strings.Split(strings.TrimSpace(key), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Symbol{}, errors.Errorf("invalid symbol key %q, expected COIN_BASE", key)
	}

	coin, base := strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
	if coin == base {
		return Symbol{}, errors.Errorf("invalid symbol key %q, coin and base must differ", key)
	}

	return Symbol{
		Key:  fmt.Sprintf("%s_%s", coin, base),
		Coin: strings.ToLower(coin),
		Base: strings.ToLower(base),
		Pair: Pair{From: coin, To: base, Ticker: strings.TrimSpace(ticker)},
	}, nil
}
