// Package pnl keeps the append-only PnL snapshot log.
package pnl

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/paperbot/internal/domain"
)

const (
	DefaultDir   = "./data/wal/pnl"
	segmentLimit = 1000
	maxSegments  = 1000
	snapshotKey  = "pnl_snapshot"
)

// WALStore persists PnL snapshots in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed PnL store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "pnl_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init PnL WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the snapshot to the WAL.
func (s *WALStore) Append(snapshot domain.PnLSnapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("PnL store is not initialized")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal PnL snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, snapshotKey, payload)
}

// All returns every snapshot still retained by the WAL, oldest first.
func (s *WALStore) All() ([]domain.PnLSnapshot, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("PnL store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]domain.PnLSnapshot, 0)
	for msg := range s.wal.Iterator() {
		if msg.Key != snapshotKey {
			continue
		}
		var snapshot domain.PnLSnapshot
		if err := json.Unmarshal(msg.Value, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode PnL snapshot")
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("PnL store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
