// Package main runs the read API together with periodic Midgard ingestion.
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

	"midgard-history/internal/api"
	"midgard-history/internal/app"
	"midgard-history/internal/config"
	"midgard-history/internal/ingestion"
	"midgard-history/internal/logger"
)

func main() {
	fs := pflag.NewFlagSet("server", pflag.ExitOnError)
	config.RegisterFlags(fs)
	noIngest := fs.Bool("no-ingest", false, "Serve the API only, without the ingestion loop")
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

	if err := run(cfg, log, !*noIngest); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		closer.Close()
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, log *slog.Logger, ingest bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Service:    a.Service,
		Interval:   cfg.Ingest.Interval,
		RunOnStart: cfg.Ingest.RunOnStart,
		Logger:     log.With("component", "ingestion"),
	})

	checks := make(map[string]api.Pinger)
	if a.Pool != nil {
		checks["postgres"] = a.Pool
	}
	if a.Cache != nil {
		checks["redis"] = a.Cache
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(api.Options{
			Service:   a.Service,
			Checks:    checks,
			LastCycle: runner.LastReport,
			Logger:    log.With("component", "api"),
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, initiating graceful shutdown", "signal", sig.String())
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.Error("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	errCh := make(chan error, 2)

	go func() {
		log.Info("read API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runnerDone <-chan error
	if ingest {
		runnerDone = runner.Start(ctx)
	} else {
		log.Info("ingestion loop disabled")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	case err := <-runnerDone:
		runnerDone = nil
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("ingestion: %w", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", "error", err)
	}

	// The store pools close on return; let an in-flight cycle finish first.
	if runnerDone != nil {
		<-runnerDone
	}
	return runErr
}
