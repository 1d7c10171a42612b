package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m1ome/ex-eip712/pkg/log"
	"github.com/m1ome/ex-eip712/pkg/signing"
)

//go:embed config/migrations/*/*.sql
var embedMigrations embed.FS

const shutdownTimeout = 5 * time.Second

func main() {
	logger := log.NewZapLogger(log.Config{}).WithName("root")

	c, err := newCommand(withLogger(logger))
	if err != nil {
		logger.Fatal("failed to build command", "error", err)
	}

	if err := c.Execute(); err != nil {
		if !errors.Is(err, errSignFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// runServe runs the RPC and metrics servers until ctx is cancelled.
func runServe(ctx context.Context, config *Config, logger log.Logger) error {
	var journal *JournalStore
	if config.JournalEnabled {
		db, err := ConnectToDB(config.dbConf, logger)
		if err != nil {
			return fmt.Errorf("failed to setup database: %w", err)
		}
		journal = NewJournalStore(db)
	}

	metrics := NewMetrics()
	service := signing.NewService(config.curve, logger)

	router, err := NewRPCRouter(config, service, journal, metrics, logger)
	if err != nil {
		return err
	}

	rpcMux := http.NewServeMux()
	rpcMux.Handle(config.RPCEndpoint, router.Node)
	rpcServer := &http.Server{
		Addr:    config.RPCListenAddr,
		Handler: rpcMux,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(config.MetricsEndpoint, promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    config.MetricsListenAddr,
		Handler: metricsMux,
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", config.MetricsListenAddr, "endpoint", config.MetricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("metrics server failure: %w", err)
		}
	}()
	go func() {
		logger.Info("RPC server available", "listenAddr", config.RPCListenAddr, "endpoint", config.RPCEndpoint)
		if err := rpcServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("RPC server failure: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down RPC server", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}
