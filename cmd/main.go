// Command paperbot runs the threshold rebalancing paper trader against a simulated wallet.
//
// Usage:
//
//	paperbot --config config.yaml [--debug]
//
// PAPERBOT_DATA_DIR overrides data_dir; a .env file in the working directory is loaded first.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vadiminshakov/paperbot/config"
	"github.com/vadiminshakov/paperbot/internal"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	bot, err := internal.NewBot(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("paperbot started",
		zap.Int("symbols", len(cfg.Symbols)),
		zap.String("threshold", cfg.Threshold.String()),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("data_dir", cfg.DataDir))

	runErr := bot.Run(ctx)
	if err := bot.Close(); err != nil {
		logger.Error("failed to release resources", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("stopped with errors", zap.Error(runErr))
		return
	}

	logger.Info("paperbot stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
