// Package pnl revalues the wallet and appends profit-and-loss snapshots.
package pnl

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

type walletReader interface {
	Get() domain.Wallet
}

type snapshotAppender interface {
	Append(snapshot domain.PnLSnapshot) error
}

// Params configures an Engine.
type Params struct {
	Wallet walletReader
	Pricer pricer
	Store  snapshotAppender
	// Coins assets revalued on every snapshot, e.g. btc, eth.
	Coins []string
	// Bases settlement currencies totals are expressed in, e.g. zar, usdt.
	Bases []string
	// Pairs valuation pair per domain.PriceKey(coin, base). Missing keys fall back to COIN+BASE.
	Pairs map[string]domain.Pair
	// Start starting value per base currency.
	Start  map[string]decimal.Decimal
	Logger *zap.Logger
	Now    func() time.Time
}

// Engine computes total portfolio value and PnL per base currency.
type Engine struct {
	wallet walletReader
	pricer pricer
	store  snapshotAppender
	coins  []string
	bases  []string
	pairs  map[string]domain.Pair
	start  map[string]decimal.Decimal
	l      *zap.Logger
	now    func() time.Time

	// serializes snapshot appends so the log stays in time order
	mu sync.Mutex
}

// NewEngine returns a configured PnL engine.
func NewEngine(p Params) (*Engine, error) {
	if p.Wallet == nil || p.Pricer == nil || p.Store == nil {
		return nil, errors.New("wallet, pricer and store are required")
	}
	if len(p.Bases) == 0 {
		return nil, errors.New("at least one base currency is required")
	}

	l := p.Logger
	if l == nil {
		l = zap.NewNop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	pairs := make(map[string]domain.Pair, len(p.Coins)*len(p.Bases))
	for _, coin := range p.Coins {
		for _, base := range p.Bases {
			// a coin that is also a settlement currency is already counted as cash
			if strings.EqualFold(coin, base) {
				continue
			}
			key := domain.PriceKey(coin, base)
			if pair, ok := p.Pairs[key]; ok {
				pairs[key] = pair
				continue
			}
			pairs[key] = domain.Pair{From: strings.ToUpper(coin), To: strings.ToUpper(base)}
		}
	}

	bases := sortedLower(p.Bases)
	start := make(map[string]decimal.Decimal, len(bases))
	for _, base := range bases {
		start[base] = p.Start[base]
	}

	return &Engine{
		wallet: p.Wallet,
		pricer: p.Pricer,
		store:  p.Store,
		coins:  sortedLower(p.Coins),
		bases:  bases,
		pairs:  pairs,
		start:  start,
		l:      l,
		now:    now,
	}, nil
}

// Snapshot values the current wallet, appends the result to the PnL log and returns it.
// An unavailable price counts as zero, so totals are understated, never overstated.
// The snapshot is returned even when appending fails.
func (e *Engine) Snapshot(ctx context.Context) (domain.PnLSnapshot, error) {
	wallet := e.wallet.Get()
	prices := e.fetchPrices(ctx)

	totals := make(map[string]decimal.Decimal, len(e.bases))
	pnl := make(map[string]decimal.Decimal, len(e.bases))
	for _, base := range e.bases {
		total := wallet.Balance(base)
		for _, coin := range e.coins {
			if coin == base {
				continue
			}
			total = total.Add(wallet.Balance(coin).Mul(prices[domain.PriceKey(coin, base)]))
		}
		totals[base] = total
		pnl[base] = total.Sub(e.start[base])
	}

	snapshot := domain.PnLSnapshot{
		Time:     e.now().UTC(),
		Balances: wallet,
		Prices:   prices,
		Totals:   totals,
		PnL:      pnl,
	}

	e.mu.Lock()
	err := e.store.Append(snapshot)
	e.mu.Unlock()
	if err != nil {
		return snapshot, errors.Wrap(err, "failed to append PnL snapshot")
	}

	fields := make([]zap.Field, 0, 2*len(e.bases))
	for _, base := range e.bases {
		fields = append(fields,
			zap.String("total_"+base, totals[base].StringFixed(2)),
			zap.String("pnl_"+base, pnl[base].StringFixed(2)))
	}
	e.l.Info("pnl snapshot", fields...)

	return snapshot, nil
}

// fetchPrices queries every valuation pair concurrently; failures become zero.
func (e *Engine) fetchPrices(ctx context.Context) map[string]decimal.Decimal {
	keys := make([]string, 0, len(e.pairs))
	for key := range e.pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]decimal.Decimal, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		pair := e.pairs[key]
		g.Go(func() error {
			price, err := e.pricer.GetPrice(gctx, pair)
			if err != nil || !price.IsPositive() {
				results[i] = decimal.Zero
				return nil
			}
			results[i] = price
			return nil
		})
	}
	_ = g.Wait()

	prices := make(map[string]decimal.Decimal, len(keys))
	for i, key := range keys {
		prices[key] = results[i]
	}
	return prices
}

func sortedLower(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.ToLower(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
