package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/user/pagestate-service/internal/app"
	"github.com/user/pagestate-service/internal/delivery/http/handler"
	"github.com/user/pagestate-service/internal/delivery/http/router"
	"github.com/user/pagestate-service/pkg/config"
	"github.com/user/pagestate-service/pkg/logger"
	"github.com/user/pagestate-service/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("could not load config", zap.Error(err))
	}

	// --- Logger ---
	log := logger.Init(os.Stdout, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, LogFile: cfg.LogFile})
	defer func() { _ = log.Sync() }()
	log.Info("Logger initialized", zap.String("level", cfg.LogLevel), zap.String("worker", cfg.WorkerHostname))

	// --- Metrics ---
	m := metrics.New(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Unable to open stores", zap.Error(err))
	}
	defer stores.Close()

	// --- Use Cases ---
	ban := stores.BanProtection(cfg, log, m)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(ban, stores.Checks, log)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, m, nil, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting server", zap.String("port", cfg.ServerPort),
			zap.String("block_store", cfg.BlockStore), zap.String("event_store", cfg.EventStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		stores.Close()
		os.Exit(1)
	}
	log.Info("Server exiting")
}
