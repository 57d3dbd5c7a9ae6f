package internal

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vadiminshakov/paperbot/config"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"github.com/vadiminshakov/paperbot/internal/export"
	"github.com/vadiminshakov/paperbot/internal/ledger"
	"github.com/vadiminshakov/paperbot/internal/services/monitor"
	"github.com/vadiminshakov/paperbot/internal/services/pnl"
	"github.com/vadiminshakov/paperbot/internal/services/recorder"
	pnlstore "github.com/vadiminshakov/paperbot/internal/storage/pnl"
	"github.com/vadiminshakov/paperbot/internal/storage/trades"
	"github.com/vadiminshakov/paperbot/internal/storage/walletstate"
	"github.com/vadiminshakov/paperbot/internal/supervisor"
)

// Bot is the fully wired paper trading process.
type Bot struct {
	Config     config.Config
	Wallet     *ledger.Ledger
	PnL        *pnl.Engine
	supervisor *supervisor.Supervisor
	closers    []func() error
}

// NewBot builds every component from cfg. Nothing runs until Run is called.
func NewBot(cfg config.Config, logger *zap.Logger) (*Bot, error) {
	return newBot(cfg, logger, newSourceProvider())
}

func newBot(cfg config.Config, logger *zap.Logger, sources *sourceProvider) (_ *Bot, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bot{Config: cfg}
	defer func() {
		if err != nil {
			err = multierr.Append(err, b.Close())
		}
	}()

	dir := cfg.DataDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	unlock, err := walletstate.Lock(dir)
	if err != nil {
		return nil, errors.Wrap(err, "another instance owns the data dir")
	}
	b.closers = append(b.closers, unlock)

	walletStore, err := walletstate.NewStore(dir)
	if err != nil {
		return nil, err
	}
	tradeStore, err := trades.NewWALStore(filepath.Join(dir, "wal", "trades"))
	if err != nil {
		return nil, errors.Wrap(err, "open trade log")
	}
	b.closers = append(b.closers, tradeStore.Close)
	snapshotStore, err := pnlstore.NewWALStore(filepath.Join(dir, "wal", "pnl"))
	if err != nil {
		return nil, errors.Wrap(err, "open PnL log")
	}
	b.closers = append(b.closers, snapshotStore.Close)
	journal, err := recorder.NewJournal(filepath.Join(dir, "logs", "trades.log"))
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() error {
		_ = journal.Sync()
		return nil
	})

	price, err := sources.Pricer(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create price sources")
	}

	bases := cfg.Bases()
	b.Wallet, err = ledger.New(walletStore, cfg.StartWallet, logger.Named("ledger"))
	if err != nil {
		return nil, errors.Wrap(err, "open wallet")
	}

	start := make(map[string]decimal.Decimal, len(bases))
	for _, base := range bases {
		start[base] = cfg.StartWallet[base]
	}
	b.PnL, err = pnl.NewEngine(pnl.Params{
		Wallet: b.Wallet,
		Pricer: price,
		Store:  snapshotStore,
		Coins:  cfg.Coins(),
		Bases:  bases,
		Pairs:  valuationPairs(cfg),
		Start:  start,
		Logger: logger.Named("pnl"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create PnL engine")
	}

	rec, err := recorder.New(tradeStore, b.PnL, logger.Named("recorder"), journal)
	if err != nil {
		return nil, err
	}

	monitors := make([]supervisor.Monitor, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		m, err := monitor.New(monitor.Params{
			Symbol:    sym,
			Threshold: cfg.Threshold,
			Interval:  cfg.PollInterval,
			Pricer:    price,
			Wallet:    b.Wallet,
			Recorder:  rec,
			Logger:    logger.Named("monitor"),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create monitor %s", sym.Key)
		}
		monitors = append(monitors, m)
	}

	exp, err := export.New(export.Params{
		Trades:    tradeStore,
		Snapshots: snapshotStore,
		Wallet:    b.Wallet,
		Backup:    walletStore,
		Dir:       dir,
		BackupDir: filepath.Join(dir, "backups"),
		Logger:    logger.Named("export"),
	})
	if err != nil {
		return nil, err
	}

	b.supervisor, err = supervisor.New(supervisor.Params{
		Monitors:        monitors,
		Wallet:          b.Wallet,
		PnL:             b.PnL,
		Exporter:        exp,
		PnLInterval:     cfg.PnLInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger.Named("supervisor"),
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

// valuationPairs revalues each configured symbol with its own ticker unless overridden.
func valuationPairs(cfg config.Config) map[string]domain.Pair {
	pairs := make(map[string]domain.Pair, len(cfg.Symbols)+len(cfg.ValuationPairs))
	for _, sym := range cfg.Symbols {
		pairs[domain.PriceKey(sym.Coin, sym.Base)] = sym.Pair
	}
	for key, pair := range cfg.ValuationPairs {
		pairs[key] = pair
	}
	return pairs
}

// Run blocks until ctx is cancelled, then finalizes the wallet and exports history.
func (b *Bot) Run(ctx context.Context) error {
	return b.supervisor.Run(ctx)
}

// Close waits for monitors that outlived the shutdown timeout, then releases stores
// and the data dir lock in reverse order of acquisition.
func (b *Bot) Close() error {
	if b.supervisor != nil {
		b.supervisor.Wait()
	}

	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}
