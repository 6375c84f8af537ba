package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/ghostwatch/internal/app"
	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/server"
)

func main() {
	// Resolve config path
	configPath := os.Getenv("GHOSTWATCH_CONFIG")

	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	if missing := a.Config.ValidateRequired(); len(missing) > 0 {
		a.Logger.Error().Strs("missing", missing).Msg("Ghostfolio connection is not configured")
		a.Close()
		os.Exit(1)
	}

	validateConnection(a)

	// Start background refresh; the first cycle runs immediately
	a.StartScheduler()

	srv := server.NewServer(a)
	shutdownChan := make(chan struct{}, 1)
	srv.SetShutdownChannel(shutdownChan)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	port := a.Config.Server.Port
	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", port)).
		Str("mcp", fmt.Sprintf("http://localhost:%d/mcp", port)).
		Msg("Server ready")

	// Wait for interrupt signal or HTTP shutdown request
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	case <-shutdownChan:
		a.Logger.Info().Msg("Shutdown requested")
	}

	common.PrintShutdownBanner(a.Logger)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	a.Logger.Info().Msg("Server stopped")
}

// validateConnection authenticates and fetches global performance once. A
// failure is logged but not fatal; the scheduler keeps retrying each interval.
func validateConnection(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Ghostfolio.GetTimeout())
	defer cancel()

	if err := a.ValidateConnection(ctx); err != nil {
		a.Logger.Error().Err(err).Str("base_url", a.Config.Ghostfolio.BaseURL).Msg("Ghostfolio connection check failed")
		return
	}
	a.Logger.Info().Str("base_url", a.Config.Ghostfolio.BaseURL).Msg("Ghostfolio connection verified")
}
