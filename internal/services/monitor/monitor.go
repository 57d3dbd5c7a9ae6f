// Package monitor implements the per-symbol threshold-crossing rebalancer.
package monitor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"github.com/vadiminshakov/paperbot/internal/ledger"
	"go.uber.org/zap"
)

const percentageMultiplier = 100

// State of the monitor's reference price.
type State int

const (
	// StateInitializing no reference price has been observed yet.
	StateInitializing State = iota
	// StateMonitoring the steady poll-evaluate loop.
	StateMonitoring
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateMonitoring:
		return "MONITORING"
	default:
		return "UNKNOWN"
	}
}

type pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

type wallet interface {
	Balance(asset string) decimal.Decimal
	Buy(base, coin string, price decimal.Decimal) (ledger.Transfer, error)
	Sell(coin, base string, price decimal.Decimal) (ledger.Transfer, error)
}

type recorder interface {
	Record(ctx context.Context, trade domain.TradeRecord) error
}

// Params configures a Monitor.
type Params struct {
	Symbol domain.Symbol
	// Threshold trigger magnitude in percent, e.g. 2 for 2%.
	Threshold decimal.Decimal
	Interval  time.Duration
	Pricer    pricer
	Wallet    wallet
	Recorder  recorder
	Logger    *zap.Logger
	// Now overrides the trade timestamp source, used by tests.
	Now func() time.Time
}

// Monitor polls one symbol and rebalances the shared wallet on a threshold crossing.
// Its reference price is owned by the goroutine running it and never shared.
type Monitor struct {
	symbol    domain.Symbol
	threshold decimal.Decimal
	interval  time.Duration
	pricer    pricer
	wallet    wallet
	recorder  recorder
	l         *zap.Logger
	now       func() time.Time

	state     State
	reference decimal.Decimal
}

// New validates params and returns a monitor in StateInitializing.
func New(p Params) (*Monitor, error) {
	if !p.Threshold.IsPositive() {
		return nil, errors.Errorf("threshold must be positive, got %s", p.Threshold.String())
	}
	if p.Interval <= 0 {
		return nil, errors.Errorf("poll interval must be positive, got %s", p.Interval)
	}
	if p.Pricer == nil || p.Wallet == nil || p.Recorder == nil {
		return nil, errors.New("pricer, wallet and recorder are required")
	}
	if p.Symbol.Coin == "" || p.Symbol.Base == "" {
		return nil, errors.Errorf("symbol %q has no coin or base asset", p.Symbol.Key)
	}

	l := p.Logger
	if l == nil {
		l = zap.NewNop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	return &Monitor{
		symbol:    p.Symbol,
		threshold: p.Threshold,
		interval:  p.Interval,
		pricer:    p.Pricer,
		wallet:    p.Wallet,
		recorder:  p.Recorder,
		l:         l.With(zap.String("symbol", p.Symbol.Key)),
		now:       now,
		state:     StateInitializing,
	}, nil
}

// Symbol returns the monitored symbol.
func (m *Monitor) Symbol() domain.Symbol {
	return m.symbol
}

// State returns the current state.
func (m *Monitor) State() State {
	return m.state
}

// Reference returns the price the next observation is compared against.
func (m *Monitor) Reference() decimal.Decimal {
	return m.reference
}

// Run executes one cycle immediately and then one per interval until ctx is cancelled.
// A cycle that has started always runs to completion: shutdown is observed only between cycles.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.l.Info("starting monitor", zap.String("pair", m.symbol.Pair.Symbol()), zap.Duration("poll_interval", m.interval))

	m.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			m.l.Info("context done, stopping monitor")
			return ctx.Err()
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	if _, err := m.Step(context.WithoutCancel(ctx)); err != nil {
		m.l.Error("monitor cycle failed", zap.Error(err))
	}
}

// Step performs a single poll-evaluate cycle and returns the executed trade, if any.
// Price unavailability is not an error: the cycle is skipped with no state change.
func (m *Monitor) Step(ctx context.Context) (*domain.TradeRecord, error) {
	current, err := m.pricer.GetPrice(ctx, m.symbol.Pair)
	if err == nil && !current.IsPositive() {
		err = errors.Errorf("non-positive price %s", current.String())
	}
	if err != nil {
		// transient: skipped silently, the next tick retries
		return nil, nil
	}

	if m.state == StateInitializing {
		m.reference = current
		m.state = StateMonitoring
		m.l.Info("reference price initialized", zap.String("price", current.String()))
		return nil, nil
	}

	change := current.Sub(m.reference).Div(m.reference).Mul(decimal.NewFromInt(percentageMultiplier))

	// the baseline always tracks the latest observation, traded or not
	m.reference = current

	action, ok := m.decide(change)
	if !ok {
		m.l.Debug("no action", zap.String("price", current.String()), zap.String("change_pct", change.StringFixed(4)))
		return nil, nil
	}

	return m.execute(ctx, action, current, change)
}

// decide applies the threshold rule. Buy is evaluated before sell.
func (m *Monitor) decide(change decimal.Decimal) (domain.Action, bool) {
	if change.LessThanOrEqual(m.threshold.Neg()) && m.wallet.Balance(m.symbol.Base).IsPositive() {
		return domain.ActionBuy, true
	}
	if change.GreaterThanOrEqual(m.threshold) && m.wallet.Balance(m.symbol.Coin).IsPositive() {
		return domain.ActionSell, true
	}
	return 0, false
}

func (m *Monitor) execute(ctx context.Context, action domain.Action, price, change decimal.Decimal) (*domain.TradeRecord, error) {
	var (
		transfer ledger.Transfer
		err      error
	)
	if action == domain.ActionBuy {
		transfer, err = m.wallet.Buy(m.symbol.Base, m.symbol.Coin, price)
	} else {
		transfer, err = m.wallet.Sell(m.symbol.Coin, m.symbol.Base, price)
	}
	if err != nil {
		// another monitor may have emptied the shared balance since decide
		if errors.Is(err, ledger.ErrEmptyBalance) {
			m.l.Debug("balance already committed, skipping", zap.String("action", action.String()))
			return nil, nil
		}
		return nil, errors.Wrapf(err, "%s rebalance", action.String())
	}

	amount, value := transfer.Received, transfer.Spent
	if action == domain.ActionSell {
		amount, value = transfer.Spent, transfer.Received
	}

	trade := domain.NewTradeRecord(m.now(), m.symbol.Pair.Symbol(), action, price, amount, value)

	m.l.Info("trade executed",
		zap.String("id", trade.ID),
		zap.String("action", action.String()),
		zap.String("amount", amount.StringFixed(6)),
		zap.String("price", price.StringFixed(2)),
		zap.String("value", value.StringFixed(2)),
		zap.String("change_pct", change.StringFixed(4)))

	if err := m.recorder.Record(ctx, trade); err != nil {
		return &trade, errors.Wrap(err, "trade executed but not fully recorded")
	}

	return &trade, nil
}
