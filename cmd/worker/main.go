// Package main runs the standalone delivery sweep worker, for deployments
// that keep the periodic pass off the API instances.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/streamlance/backend/config"
	"github.com/streamlance/backend/internal/delivery"
	"github.com/streamlance/backend/internal/donations"
	"github.com/streamlance/backend/internal/realtime"
	"github.com/streamlance/backend/internal/streamers"
	"github.com/streamlance/backend/internal/worker"
	"github.com/streamlance/backend/pkg/database"
	"github.com/streamlance/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	playback := time.Duration(cfg.Playback.DurationSeconds) * time.Second
	sweepInterval := time.Duration(cfg.Sweep.IntervalSeconds) * time.Second

	// Events from this process reach API instances through Redis pub/sub; the
	// hub here has no local sessions.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	queue := delivery.NewQueue(rdb.Client, realtime.NewQueueNotifier(hub), playback, logger)
	timers := donations.NewTimerRegistry()

	streamerRepo := streamers.NewRepository(pool)
	viewerFeed := streamers.NewViewerFeed(rdb.Client, time.Duration(cfg.Viewers.CacheTTLSeconds)*time.Second, logger)
	donationRepo := donations.NewRepository(pool)
	donationService := donations.NewService(donationRepo, streamerRepo, viewerFeed, queue, hub, timers, playback, logger)

	sweeper := worker.NewSweeper(donationService, donationRepo, sweepInterval, playback, logger)

	sweepCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(sweepCtx)
	logger.Info("sweep worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	timers.Stop()
	time.Sleep(2 * time.Second)
	logger.Info("sweep worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
