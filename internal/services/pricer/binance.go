package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
)

// BinancePricer fetches real market prices from Binance public API
// without requiring authentication.
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a pricer backed by an unauthenticated Binance client.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	if client == nil {
		client = binance.NewClient("", "")
	}
	return &BinancePricer{client: client}
}

func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", pair.Symbol())
	}

	return decimal.NewFromString(prices[0].Price)
}
