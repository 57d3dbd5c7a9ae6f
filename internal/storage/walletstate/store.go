// Package walletstate persists the shared paper wallet so restarts keep balances.
package walletstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
)

const (
	walletFileName  = "wallet.json"
	lockFileName    = "paperbot.lock"
	backupTimestamp = "2006-01-02_15-04-05"
)

// Store reads and overwrites the whole wallet document.
type Store struct {
	path string
}

// State represents all persisted wallet data.
type State struct {
	Wallet    map[string]string `json:"wallet"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewStore creates a wallet store under dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create wallet state dir")
	}

	return &Store{path: filepath.Join(dir, walletFileName)}, nil
}

// Path returns the wallet file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the wallet from disk. It returns nil, nil when nothing was persisted yet.
func (s *Store) Load() (domain.Wallet, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read wallet state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode wallet state")
	}

	wallet := make(domain.Wallet, len(state.Wallet))
	for asset, balanceStr := range state.Wallet {
		if balanceStr == "" {
			wallet[asset] = decimal.Zero
			continue
		}
		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s balance", asset)
		}
		wallet[asset] = balance
	}

	return wallet, nil
}

// Save writes the wallet to disk atomically via temp file.
func (s *Store) Save(wallet domain.Wallet) error {
	state := State{
		Wallet:    make(map[string]string, len(wallet)),
		UpdatedAt: time.Now().UTC(),
	}
	for asset, balance := range wallet {
		state.Wallet[asset] = balance.String()
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode wallet state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write wallet state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist wallet state")
	}

	return nil
}

// Backup copies the persisted wallet into dir under a timestamped name and returns its path.
func (s *Store) Backup(dir string, now time.Time) (string, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return "", errors.Wrap(err, "read wallet state for backup")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create backup dir")
	}

	target := filepath.Join(dir, fmt.Sprintf("wallet_backup_%s.json", now.Format(backupTimestamp)))
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		return "", errors.Wrap(err, "write wallet backup")
	}

	return target, nil
}

// Lock takes an exclusive lock on dir so that two processes never share one wallet.
// The returned function releases it.
func Lock(dir string) (func() error, error) {
	abs, err := filepath.Abs(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, errors.Wrap(err, "resolve lock path")
	}

	flock, err := lockfile.New(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create lock file %q", abs)
	}
	if err := flock.TryLock(); err != nil {
		return nil, errors.Wrapf(err, "could not get lock on file %q", abs)
	}

	return flock.Unlock, nil
}
