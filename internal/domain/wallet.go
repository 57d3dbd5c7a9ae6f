package domain

import "github.com/shopspring/decimal"

// Wallet maps a lower-case asset symbol to its balance.
type Wallet map[string]decimal.Decimal

// Copy returns a deep copy of the wallet.
func (w Wallet) Copy() Wallet {
	out := make(Wallet, len(w))
	for asset, balance := range w {
		out[asset] = balance
	}
	return out
}

// Balance returns the asset balance, zero if the asset is absent.
func (w Wallet) Balance(asset string) decimal.Decimal {
	if b, ok := w[asset]; ok {
		return b
	}
	return decimal.Zero
}
