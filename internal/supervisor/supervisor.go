// Package supervisor runs one monitor per symbol and finalizes state on shutdown.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"github.com/vadiminshakov/paperbot/internal/export"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 15 * time.Second

// Monitor is a per-symbol loop that returns once ctx is cancelled.
type Monitor interface {
	Run(ctx context.Context) error
	Symbol() domain.Symbol
}

type persister interface {
	Persist() error
}

type snapshotter interface {
	Snapshot(ctx context.Context) (domain.PnLSnapshot, error)
}

type exporter interface {
	Export(ctx context.Context) (export.Artifacts, error)
}

// Params configures a Supervisor.
type Params struct {
	Monitors []Monitor
	Wallet   persister
	PnL      snapshotter
	Exporter exporter
	// PnLInterval enables periodic snapshots when positive.
	PnLInterval     time.Duration
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// Supervisor owns the lifecycle of all monitors.
type Supervisor struct {
	monitors        []Monitor
	wallet          persister
	pnl             snapshotter
	exporter        exporter
	pnlInterval     time.Duration
	shutdownTimeout time.Duration
	l               *zap.Logger

	// tracks monitors still running after Run returned on a shutdown timeout
	running sync.WaitGroup
}

func New(p Params) (*Supervisor, error) {
	if len(p.Monitors) == 0 {
		return nil, errors.New("at least one monitor is required")
	}
	if p.Wallet == nil || p.Exporter == nil {
		return nil, errors.New("wallet and exporter are required")
	}
	if p.PnLInterval > 0 && p.PnL == nil {
		return nil, errors.New("periodic PnL requires a PnL engine")
	}
	if p.ShutdownTimeout <= 0 {
		p.ShutdownTimeout = defaultShutdownTimeout
	}
	l := p.Logger
	if l == nil {
		l = zap.NewNop()
	}

	return &Supervisor{
		monitors:        p.Monitors,
		wallet:          p.Wallet,
		pnl:             p.PnL,
		exporter:        p.Exporter,
		pnlInterval:     p.PnLInterval,
		shutdownTimeout: p.ShutdownTimeout,
		l:               l,
	}, nil
}

// Run starts every monitor and blocks until ctx is cancelled. It then waits for in-flight
// cycles to finish, bounded by the shutdown timeout, persists the wallet and exports history.
func (s *Supervisor) Run(ctx context.Context) error {
	var g errgroup.Group

	for _, m := range s.monitors {
		g.Go(func() error {
			if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrapf(err, "monitor %s", m.Symbol().Key)
			}
			return nil
		})
		s.l.Info("started", zap.String("symbol", m.Symbol().Key))
	}

	if s.pnlInterval > 0 {
		g.Go(func() error {
			s.periodicPnL(ctx)
			return nil
		})
	}

	<-ctx.Done()
	s.l.Info("shutdown requested, waiting for in-flight cycles", zap.Duration("timeout", s.shutdownTimeout))

	done := make(chan error, 1)
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		done <- g.Wait()
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-time.After(s.shutdownTimeout):
		s.l.Warn("shutdown timeout elapsed, finalizing with cycles still running")
	}

	return multierr.Append(runErr, s.finalize())
}

// Wait blocks until every monitor started by Run has returned. Stores the monitors
// write to must stay open until then.
func (s *Supervisor) Wait() {
	s.running.Wait()
}

func (s *Supervisor) periodicPnL(ctx context.Context) {
	ticker := time.NewTicker(s.pnlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.pnl.Snapshot(context.WithoutCancel(ctx)); err != nil {
				s.l.Error("periodic PnL snapshot failed", zap.Error(err))
			}
		}
	}
}

// finalize runs on a fresh context: the run context is already cancelled.
func (s *Supervisor) finalize() error {
	var persistErr error
	if err := s.wallet.Persist(); err != nil {
		s.l.Error("final wallet snapshot failed", zap.Error(err))
		persistErr = errors.Wrap(err, "final wallet snapshot")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	artifacts, err := s.exporter.Export(ctx)
	if err != nil {
		s.l.Error("export failed", zap.Error(err))
		return multierr.Append(persistErr, errors.Wrap(err, "export"))
	}

	s.l.Info("shutdown complete",
		zap.String("wallet_backup", artifacts.WalletBackup),
		zap.String("workbook", artifacts.Workbook),
		zap.String("trades_csv", artifacts.TradesCSV),
		zap.String("pnl_csv", artifacts.PnLCSV))

	return persistErr
}
