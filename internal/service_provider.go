package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/luno/luno-go"

	"github.com/vadiminshakov/paperbot/config"
	"github.com/vadiminshakov/paperbot/internal/services/pricer"
)

// sourceProvider lazily builds one public-market client per configured price source.
type sourceProvider struct {
	sources map[string]pricer.Pricer
	build   func(name string) (pricer.Pricer, error)
}

func newSourceProvider() *sourceProvider {
	return &sourceProvider{
		sources: make(map[string]pricer.Pricer),
		build:   newPriceSource,
	}
}

// newPriceSource is the single point of truth for dispatching to platform-specific pricers.
func newPriceSource(name string) (pricer.Pricer, error) {
	switch name {
	case config.SourceBinance:
		return pricer.NewBinancePricer(binance.NewClient("", "")), nil
	case config.SourceBybit:
		return pricer.NewBybitPricer(bybit.NewClient()), nil
	case config.SourceLuno:
		return pricer.NewLunoPricer(luno.NewClient()), nil
	default:
		return nil, fmt.Errorf("unsupported price source: %s", name)
	}
}

func (p *sourceProvider) get(name string) (pricer.Pricer, error) {
	if src, ok := p.sources[name]; ok {
		return src, nil
	}
	src, err := p.build(name)
	if err != nil {
		return nil, err
	}
	p.sources[name] = src
	return src, nil
}

// Pricer routes every base currency to its configured source; unknown bases go to Binance.
func (p *sourceProvider) Pricer(cfg config.Config) (pricer.Pricer, error) {
	fallback, err := p.get(config.SourceBinance)
	if err != nil {
		return nil, err
	}
	router := pricer.NewRouter(fallback)
	for base, name := range cfg.PriceSources {
		src, err := p.get(name)
		if err != nil {
			return nil, err
		}
		router.Route(base, src)
	}

	return pricer.NewGuard(router, cfg.FetchTimeout), nil
}
