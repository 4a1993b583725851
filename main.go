package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sjsage522/immunescraper/config"
	"sjsage522/immunescraper/logger"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	// Initialize logger first
	logger.Init(cfg.IsProduction())

	// Interrupts cancel the run before anything is written
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(cfg).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Default.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}
