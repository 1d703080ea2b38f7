// Command signalgrid-api wires the signal-cycle control plane together:
// config -> signal store -> phase cache -> broadcast bus -> cycle engine
// (started once, goroutine-owned) -> HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/signalgrid/controlplane/internal/api"
	"github.com/signalgrid/controlplane/internal/broadcast"
	"github.com/signalgrid/controlplane/internal/cache"
	"github.com/signalgrid/controlplane/internal/config"
	"github.com/signalgrid/controlplane/internal/engine"
	"github.com/signalgrid/controlplane/internal/metrics"
	"github.com/signalgrid/controlplane/internal/store"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	verbose := flag.BoolP("verbose", "v", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("signalgrid-api version: %s, commit: %s\n", version, commit)
		return nil
	}

	log := newLogger(*verbose)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.Info("starting signalgrid-api", "service", cfg.ServiceName, "version", version, "commit", commit)
	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalStore, err := store.New(ctx, store.Config{Logger: log.With("component", "store"), DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect signal store: %w", err)
	}
	defer signalStore.Close()

	phaseCache := cache.New()
	bus := broadcast.New(log.With("component", "broadcast"))
	clock := clockwork.NewRealClock()

	cycleEngine, err := engine.NewCycleEngine(engine.CycleEngineConfig{
		Logger:       log.With("component", "cycle-engine"),
		Clock:        clock,
		Store:        signalStore,
		Cache:        phaseCache,
		Publisher:    bus,
		TickInterval: cfg.TickInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to build cycle engine: %w", err)
	}

	overrideHandler := engine.NewOverrideHandler(log.With("component", "override"), clock, signalStore, phaseCache, bus)
	resetHandler := engine.NewResetHandler(log.With("component", "reset"), clock, signalStore, phaseCache, bus)

	httpAPI := api.New(api.Config{
		Logger:   log.With("component", "api"),
		Override: overrideHandler,
		Reset:    resetHandler,
		Store:    signalStore,
		Admin:    signalStore,
		Cache:    phaseCache,
		Bus:      bus,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpAPI.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		listener, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			log.Error("failed to start prometheus metrics listener", "error", err)
		} else {
			log.Info("prometheus metrics server listening", "addr", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer = &http.Server{Handler: mux}
			go func() {
				if err := metricsServer.Serve(listener); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := cycleEngine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("cycle engine stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		close(errCh)
	}()

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown error", "error", err)
	} else {
		log.Info("http server stopped gracefully")
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}
