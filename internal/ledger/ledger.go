// Package ledger owns the single shared paper wallet.
//
// Every mutation runs as one critical section: read, modify, persist.
// If persisting fails the in-memory wallet is left at the last persisted value.
package ledger

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"go.uber.org/zap"
)

var (
	// ErrEmptyBalance the source asset holds nothing to move.
	ErrEmptyBalance = errors.New("source balance is zero")
	// ErrInvalidPrice the conversion price is not positive.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrUnknownAsset the asset is not part of the wallet.
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrPersist the wallet could not be written; the mutation was rolled back.
	ErrPersist = errors.New("wallet persistence failed")
)

// Store is the durable whole-object home of the wallet.
type Store interface {
	Load() (domain.Wallet, error)
	Save(wallet domain.Wallet) error
}

// Transfer describes a completed rebalancing.
type Transfer struct {
	From string
	To   string
	// Spent full balance taken out of From.
	Spent decimal.Decimal
	// Received amount credited to To.
	Received decimal.Decimal
	Price    decimal.Decimal
}

// Ledger is a mutex-guarded wallet backed by an atomic persistence step.
type Ledger struct {
	mu     sync.Mutex
	wallet domain.Wallet
	store  Store
	l      *zap.Logger
}

// New restores the wallet from store, or seeds and persists start when nothing is stored yet.
func New(store Store, start domain.Wallet, l *zap.Logger) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("wallet store is required")
	}
	if l == nil {
		l = zap.NewNop()
	}

	wallet, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to restore wallet")
	}

	seeded := false
	if wallet == nil {
		wallet = start.Copy()
		seeded = true
	}
	// assets added to the configuration after the first run start empty
	for asset := range start {
		if _, ok := wallet[asset]; !ok {
			wallet[asset] = decimal.Zero
			seeded = true
		}
	}
	for asset, balance := range wallet {
		if balance.IsNegative() {
			return nil, errors.Errorf("stored %s balance is negative: %s", asset, balance.String())
		}
	}

	if seeded {
		if err := store.Save(wallet); err != nil {
			return nil, errors.Wrap(err, "failed to persist starting wallet")
		}
	}

	l.Info("wallet loaded", zap.Bool("seeded", seeded), zap.Any("wallet", walletFields(wallet)))

	return &Ledger{
		wallet: wallet,
		store:  store,
		l:      l,
	}, nil
}

// Get returns a point-in-time copy of the wallet.
func (lg *Ledger) Get() domain.Wallet {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return lg.wallet.Copy()
}

// Balance returns the current balance of a single asset.
func (lg *Ledger) Balance(asset string) decimal.Decimal {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return lg.wallet.Balance(asset)
}

// Buy spends the entire base balance on coin at price, in base units per coin.
func (lg *Ledger) Buy(base, coin string, price decimal.Decimal) (Transfer, error) {
	return lg.rebalance(base, coin, price, decimal.Decimal.Div)
}

// Sell converts the entire coin balance into base at price, in base units per coin.
func (lg *Ledger) Sell(coin, base string, price decimal.Decimal) (Transfer, error) {
	return lg.rebalance(coin, base, price, decimal.Decimal.Mul)
}

// rebalance moves the entire from balance into to and persists the result before
// returning. It is a no-op returning ErrEmptyBalance or ErrInvalidPrice when there is
// nothing to move or the price is unusable.
func (lg *Ledger) rebalance(from, to string, price decimal.Decimal, convert func(decimal.Decimal, decimal.Decimal) decimal.Decimal) (Transfer, error) {
	if !price.IsPositive() {
		return Transfer{}, errors.Wrapf(ErrInvalidPrice, "got %s", price.String())
	}
	if from == to {
		return Transfer{}, errors.Errorf("cannot rebalance %s into itself", from)
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	fromBalance, ok := lg.wallet[from]
	if !ok {
		return Transfer{}, errors.Wrapf(ErrUnknownAsset, "%s", from)
	}
	if _, ok := lg.wallet[to]; !ok {
		return Transfer{}, errors.Wrapf(ErrUnknownAsset, "%s", to)
	}
	if !fromBalance.IsPositive() {
		return Transfer{}, errors.Wrapf(ErrEmptyBalance, "%s", from)
	}

	moved := convert(fromBalance, price)

	next := lg.wallet.Copy()
	next[from] = decimal.Zero
	next[to] = next[to].Add(moved)

	if err := lg.store.Save(next); err != nil {
		lg.l.Error("wallet persistence failed, rebalance rolled back",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
		return Transfer{}, errors.Wrapf(ErrPersist, "%s -> %s: %v", from, to, err)
	}
	lg.wallet = next

	return Transfer{
		From:     from,
		To:       to,
		Spent:    fromBalance,
		Received: moved,
		Price:    price,
	}, nil
}

// Persist writes the current wallet again, used for the final shutdown snapshot.
func (lg *Ledger) Persist() error {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	if err := lg.store.Save(lg.wallet); err != nil {
		return errors.Wrap(ErrPersist, err.Error())
	}
	return nil
}

func walletFields(w domain.Wallet) map[string]string {
	out := make(map[string]string, len(w))
	for asset, balance := range w {
		out[asset] = balance.String()
	}
	return out
}
