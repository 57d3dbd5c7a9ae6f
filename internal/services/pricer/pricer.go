// Package pricer adapts exchange ticker endpoints to a single PriceSource contract.
package pricer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
)

// ErrPriceUnavailable signals that no usable price could be obtained for this attempt.
// It is transient: callers skip the cycle and try again later.
var ErrPriceUnavailable = errors.New("price unavailable")

// Pricer returns the last traded price of a pair in its base currency.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// Router dispatches a request to the source registered for the pair's base currency.
type Router struct {
	sources  map[string]Pricer
	fallback Pricer
}

// NewRouter creates a router. fallback serves base currencies without a dedicated source.
func NewRouter(fallback Pricer) *Router {
	return &Router{sources: make(map[string]Pricer), fallback: fallback}
}

// Route registers source for the given base currency.
func (r *Router) Route(base string, source Pricer) *Router {
	r.sources[strings.ToUpper(base)] = source
	return r
}

func (r *Router) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	source, ok := r.sources[strings.ToUpper(pair.To)]
	if !ok {
		source = r.fallback
	}
	if source == nil {
		return decimal.Zero, errors.Errorf("no price source for %s", pair.String())
	}

	return source.GetPrice(ctx, pair)
}

// Guard bounds every request with a timeout and folds all failures,
// including non-positive prices, into ErrPriceUnavailable.
type Guard struct {
	source  Pricer
	timeout time.Duration
}

// NewGuard wraps source. A non-positive timeout leaves the caller's deadline untouched.
func NewGuard(source Pricer, timeout time.Duration) *Guard {
	return &Guard{source: source, timeout: timeout}
}

func (g *Guard) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	price, err := g.source.GetPrice(ctx, pair)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrPriceUnavailable, "%s: %v", pair.Symbol(), err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.Wrapf(ErrPriceUnavailable, "%s: non-positive price %s", pair.Symbol(), price.String())
	}

	return price, nil
}
