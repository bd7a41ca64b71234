package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/config"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/container"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store/wsfeed"
	reasoninghttp "github.com/reasoning-core/reasoning-core/internal/reasoning/transport/http"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/transport/http/zoneadmin"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reasoning core as a long-lived service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, zoneList, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg.Server.Production)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	cont, err := container.New(cfg, zoneList, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer func() {
		if err := cont.Close(); err != nil {
			logger.Error("failed to close container", zap.Error(err))
		}
	}()

	config.WatchZones(func(newZones []*domain.Zone, _ config.PipelineConfig) {
		logger.Info("zone configuration changed on disk; restart to apply", zap.Int("zone_count", len(newZones)))
	})

	if cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	h := reasoninghttp.NewHandler(logger, cfg, cont.Store, cont.Coordinator)
	h.SetupRoutes(router)

	zoneRouter := mux.NewRouter()
	zoneadmin.New(logger, cont.Zones).RegisterRoutes(zoneRouter)

	topMux := http.NewServeMux()
	topMux.Handle("/api/zones", zoneRouter)
	topMux.Handle("/api/zones/", zoneRouter)
	if cfg.WebSocket.Enabled {
		topMux.Handle(cfg.WebSocket.Path, wsfeed.New(logger, cfg.WebSocket, cont.Store, cont.Metrics))
	}
	topMux.Handle("/", router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      topMux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("starting reasoning-core", zap.Int("port", cfg.Server.Port), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	cont.Store.MarkUnavailable()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
