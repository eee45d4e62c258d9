package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/config"
	"github.com/medipredict/internal/db"
	"github.com/medipredict/internal/handler"
	"github.com/medipredict/internal/logging"
	"github.com/medipredict/internal/metrics"
	"github.com/medipredict/internal/router"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.GinMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := db.EnsureUser(cfg.SeedUserName, cfg.SeedUserPassword); err != nil {
		logger.Fatal("failed to ensure seed user", zap.Error(err))
	}

	m := metrics.New()
	api := handler.NewAPI(db.DB, cfg, m, logger)

	// 定期清理闲置模型
	scheduler := cron.New()
	if _, err := api.EstimatorCache().Schedule(scheduler, cfg.CacheSweepInterval, logger); err != nil {
		logger.Fatal("failed to schedule cache sweep", zap.Error(err))
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.SetupRouter(api, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
