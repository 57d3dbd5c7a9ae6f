package pricer

import (
	"context"
	"fmt"
	"strings"

	luno "github.com/luno/luno-go"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
)

// LunoPricer serves ZAR-settled pairs from the Luno public ticker.
type LunoPricer struct {
	client *luno.Client
}

func NewLunoPricer(client *luno.Client) *LunoPricer {
	if client == nil {
		client = luno.NewClient()
	}
	return &LunoPricer{client: client}
}

func (p *LunoPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	ticker := lunoTicker(pair)

	res, err := p.client.GetTicker(ctx, &luno.GetTickerRequest{Pair: ticker})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if res == nil {
		return decimal.Decimal{}, fmt.Errorf("luno API returned empty ticker for %s", ticker)
	}

	return decimal.NewFromString(res.LastTrade.String())
}

// lunoTicker maps BTC to Luno's XBT code when no explicit ticker is configured.
func lunoTicker(pair domain.Pair) string {
	if pair.Ticker != "" {
		return pair.Ticker
	}
	from := strings.ToUpper(pair.From)
	if from == "BTC" {
		from = "XBT"
	}
	return from + strings.ToUpper(pair.To)
}
