// Package main ingests Midgard history into PostgreSQL, either once or on an interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"midgard-history/internal/app"
	"midgard-history/internal/config"
	"midgard-history/internal/ingestion"
	"midgard-history/internal/logger"
	"midgard-history/internal/observability"
)

func main() {
	fs := pflag.NewFlagSet("ingest", pflag.ExitOnError)
	config.RegisterFlags(fs)
	once := fs.Bool("once", false, "Run a single ingestion cycle and exit")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	_ = fs.Parse(os.Args[1:])

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *once, *metricsAddr); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("ingestion failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, once bool, metricsAddr string) error {
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			log.Info("metrics server listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	if once {
		report := a.Service.RunCycle(ctx)
		log.Info("ingestion finished", "cycle_id", report.ID.String(), "inserted", report.Inserted())
		return report.Err()
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Service:    a.Service,
		Interval:   cfg.Ingest.Interval,
		RunOnStart: cfg.Ingest.RunOnStart,
		Logger:     log.With("component", "ingestion"),
	})
	return runner.Run(ctx)
}
