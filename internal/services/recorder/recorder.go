// Package recorder appends executed trades to the trade log and follows each one with a PnL snapshot.
package recorder

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"go.uber.org/zap"
)

// ErrAppend the trade could not be written to the trade log.
// The wallet change that produced it is not undone.
var ErrAppend = errors.New("trade log append failed")

type tradeAppender interface {
	Append(record domain.TradeRecord) error
}

type snapshotter interface {
	Snapshot(ctx context.Context) (domain.PnLSnapshot, error)
}

// Recorder is safe for concurrent use; ordering between monitors is whatever the store observes.
type Recorder struct {
	store   tradeAppender
	pnl     snapshotter
	l       *zap.Logger
	journal *zap.Logger
}

// New creates a recorder. journal receives one human-readable line per trade and may be nil.
func New(store tradeAppender, pnl snapshotter, l, journal *zap.Logger) (*Recorder, error) {
	if store == nil || pnl == nil {
		return nil, errors.New("trade store and PnL engine are required")
	}
	if l == nil {
		l = zap.NewNop()
	}
	if journal == nil {
		journal = zap.NewNop()
	}
	return &Recorder{store: store, pnl: pnl, l: l, journal: journal}, nil
}

// Record appends the trade and then takes a PnL snapshot before returning.
func (r *Recorder) Record(ctx context.Context, trade domain.TradeRecord) error {
	if err := r.store.Append(trade); err != nil {
		r.l.Error("trade log append failed, wallet change stays applied",
			zap.String("id", trade.ID),
			zap.String("pair", trade.Pair),
			zap.Error(err))
		return errors.Wrapf(ErrAppend, "%s: %v", trade.ID, err)
	}

	r.journal.Info(trade.String(),
		zap.String("id", trade.ID),
		zap.String("pair", trade.Pair),
		zap.String("action", trade.Action.String()),
		zap.String("price", trade.Price.StringFixed(2)),
		zap.String("amount", trade.Amount.StringFixed(6)),
		zap.String("value", trade.Value.StringFixed(2)))

	if _, err := r.pnl.Snapshot(ctx); err != nil {
		r.l.Error("PnL snapshot after trade failed", zap.String("id", trade.ID), zap.Error(err))
		return errors.Wrap(err, "trade recorded without PnL snapshot")
	}

	return nil
}

// NewJournal builds the trade journal logger writing JSON lines to path.
func NewJournal(path string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create trade journal dir")
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.Sampling = nil

	journal, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build trade journal")
	}
	return journal, nil
}
