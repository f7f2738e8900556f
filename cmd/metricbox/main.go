package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/neox5/metricbox/internal/app"
	"github.com/neox5/metricbox/internal/config"
	"github.com/neox5/metricbox/internal/monitor"
	"github.com/neox5/metricbox/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "metricbox",
		Usage:   "Metrics collector: receives pushed snapshots and exposes them for scraping",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	debug := cmd.Bool("debug")

	// Configure logging level
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting metricbox", "version", version.String(), "config", configPath)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize collector pipeline
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// Setup graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start batch processor
	application.Processor.Run(shutdownCtx)
	defer application.Processor.Wait()

	// Start resource monitor
	if mon := monitor.New(30*time.Second, logger); mon != nil {
		mon.Run(shutdownCtx)
		defer mon.Wait()
	}

	// Start servers
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Go(func() {
		if err := application.Receiver.Start(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("receiver: %w", err)
		}
	})

	wg.Go(func() {
		if err := application.ScrapeServer.Start(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("scrape server: %w", err)
		}
	})

	// Wait for shutdown or server error
	select {
	case err := <-errChan:
		slog.Error("server error", "error", err)
		stop()
	case <-shutdownCtx.Done():
	}

	wg.Wait()

	slog.Info("shutdown complete")
	return nil
}
