package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/pkg/adapters/metrics/prometheus"
	"github.com/arbiterhq/arbiter/pkg/api/grpc"
	"github.com/arbiterhq/arbiter/pkg/api/http"
	"github.com/arbiterhq/arbiter/pkg/api/websocket"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting arbiter",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	a, err := buildApp(context.Background(), cfg, prometheus.NewCollector(), logger)
	if err != nil {
		logger.Error("failed to build service", zap.Error(err))
		return err
	}

	if err := a.pool.Start(); err != nil {
		logger.Error("failed to start dispatch pool", zap.Error(err))
		return err
	}

	httpServer := http.NewServer(&http.Config{
		Port:   cfg.HTTPPort,
		Engine: a.engine,
		Logger: logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(a.eventBus, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create gRPC server", zap.Error(err))
		return err
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("arbiter started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("analyst_parallelism", cfg.Engine.AnalystParallelism))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}
	a.close(shutdownCtx)

	logger.Info("arbiter shut down complete")
	return nil
}
