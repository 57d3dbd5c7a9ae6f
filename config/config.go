// Package config loads the immutable bot configuration from a YAML file.
package config

import (
	"flag"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// DataDirEnv overrides data_dir when set.
const DataDirEnv = "PAPERBOT_DATA_DIR"

const (
	SourceLuno    = "luno"
	SourceBinance = "binance"
	SourceBybit   = "bybit"
)

const (
	defaultPollInterval    = 60 * time.Second
	defaultFetchTimeout    = 5 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultDataDir         = "./data"
)

// Config is built once at startup and never mutated.
type Config struct {
	// Symbols sorted by key.
	Symbols []domain.Symbol
	// Threshold trigger magnitude in percent.
	Threshold   decimal.Decimal
	StartWallet domain.Wallet

	PollInterval    time.Duration
	FetchTimeout    time.Duration
	ShutdownTimeout time.Duration
	// PnLInterval enables periodic snapshots when positive.
	PnLInterval time.Duration

	DataDir string
	// PriceSources lower-case base currency -> price source name.
	PriceSources map[string]string
	// ValuationPairs domain.PriceKey -> pair used for PnL revaluation.
	ValuationPairs map[string]domain.Pair

	Debug bool
}

type configTmp struct {
	Symbols         map[string]string `yaml:"symbols"`
	Threshold       string            `yaml:"threshold"`
	StartWallet     map[string]string `yaml:"start_wallet"`
	PollInterval    time.Duration     `yaml:"poll_interval,omitempty"`
	FetchTimeout    time.Duration     `yaml:"fetch_timeout,omitempty"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout,omitempty"`
	PnLInterval     time.Duration     `yaml:"pnl_interval,omitempty"`
	DataDir         string            `yaml:"data_dir,omitempty"`
	PriceSources    map[string]string `yaml:"price_sources,omitempty"`
	ValuationPairs  map[string]string `yaml:"valuation_pairs,omitempty"`
}

// Get parses command-line flags and loads the referenced config file.
func Get() (Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("paperbot", flag.ContinueOnError)
	path := fs.String("config", "config.yaml", "path to yaml config")
	debug := fs.Bool("debug", false, "enable development logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrapf(ErrInvalidConfig, "flags: %v", err)
	}

	cfg, err := Load(*path)
	if err != nil {
		return Config{}, err
	}
	cfg.Debug = *debug

	return cfg, nil
}

// Load reads and validates the config file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(ErrInvalidConfig, "read %s: %v", path, err)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, errors.Wrapf(ErrInvalidConfig, "parse %s: %v", path, err)
	}

	return tmp.build()
}

func (c configTmp) build() (Config, error) {
	cfg := Config{
		PollInterval:    orDefault(c.PollInterval, defaultPollInterval),
		FetchTimeout:    orDefault(c.FetchTimeout, defaultFetchTimeout),
		ShutdownTimeout: orDefault(c.ShutdownTimeout, defaultShutdownTimeout),
		PnLInterval:     c.PnLInterval,
		DataDir:         c.DataDir,
	}
	if cfg.PnLInterval < 0 {
		return Config{}, invalid("'pnl_interval' must not be negative")
	}
	if dir := os.Getenv(DataDirEnv); dir != "" {
		cfg.DataDir = dir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}

	if c.Threshold == "" {
		return Config{}, invalid("'threshold' is required")
	}
	threshold, err := decimal.NewFromString(c.Threshold)
	if err != nil {
		return Config{}, invalid("incorrect 'threshold' param %q: %v", c.Threshold, err)
	}
	if !threshold.IsPositive() {
		return Config{}, invalid("'threshold' must be positive, got %s", threshold)
	}
	cfg.Threshold = threshold

	if len(c.StartWallet) == 0 {
		return Config{}, invalid("'start_wallet' is required")
	}
	cfg.StartWallet = make(domain.Wallet, len(c.StartWallet))
	for asset, value := range c.StartWallet {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return Config{}, invalid("incorrect balance for %q in 'start_wallet': %v", asset, err)
		}
		if amount.IsNegative() {
			return Config{}, invalid("negative balance for %q in 'start_wallet'", asset)
		}
		cfg.StartWallet[strings.ToLower(asset)] = amount
	}

	if len(c.Symbols) == 0 {
		return Config{}, invalid("'symbols' is required")
	}
	keys := make([]string, 0, len(c.Symbols))
	for key := range c.Symbols {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sym, err := domain.ParseSymbol(key, c.Symbols[key])
		if err != nil {
			return Config{}, invalid("%v", err)
		}
		if _, dup := seen[sym.Key]; dup {
			return Config{}, invalid("duplicate symbol %s", sym.Key)
		}
		seen[sym.Key] = struct{}{}
		if _, ok := cfg.StartWallet[sym.Base]; !ok {
			return Config{}, invalid("base currency %q of %s is missing from 'start_wallet'", sym.Base, sym.Key)
		}
		cfg.Symbols = append(cfg.Symbols, sym)
	}

	// coins may be omitted, monitors need them present to buy into
	for _, sym := range cfg.Symbols {
		if _, ok := cfg.StartWallet[sym.Coin]; !ok {
			cfg.StartWallet[sym.Coin] = decimal.Zero
		}
	}

	cfg.PriceSources = make(map[string]string)
	for _, base := range cfg.Bases() {
		cfg.PriceSources[base] = defaultSource(base)
	}
	for base, source := range c.PriceSources {
		source = strings.ToLower(strings.TrimSpace(source))
		switch source {
		case SourceLuno, SourceBinance, SourceBybit:
		default:
			return Config{}, invalid("unknown price source %q for %q", source, base)
		}
		cfg.PriceSources[strings.ToLower(base)] = source
	}

	cfg.ValuationPairs = make(map[string]domain.Pair, len(c.ValuationPairs))
	for key, ticker := range c.ValuationPairs {
		sym, err := domain.ParseSymbol(key, ticker)
		if err != nil {
			return Config{}, invalid("'valuation_pairs': %v", err)
		}
		cfg.ValuationPairs[domain.PriceKey(sym.Coin, sym.Base)] = sym.Pair
	}

	return cfg, nil
}

// Bases returns the distinct lower-case base currencies of all symbols, sorted.
func (c Config) Bases() []string {
	return distinct(c.Symbols, func(s domain.Symbol) string { return s.Base })
}

// Coins returns the distinct lower-case coins of all symbols, sorted.
func (c Config) Coins() []string {
	return distinct(c.Symbols, func(s domain.Symbol) string { return s.Coin })
}

func distinct(symbols []domain.Symbol, field func(domain.Symbol) string) []string {
	set := make(map[string]struct{})
	for _, s := range symbols {
		set[field(s)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ZAR pairs are only listed on Luno.
func defaultSource(base string) string {
	if base == "zar" {
		return SourceLuno
	}
	return SourceBinance
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}
