// Package main runs the marketplace HTTP server with WebSocket push, the
// delivery sweep and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/streamlance/backend/config"
	"github.com/streamlance/backend/internal/allocator"
	"github.com/streamlance/backend/internal/auth"
	"github.com/streamlance/backend/internal/campaigns"
	"github.com/streamlance/backend/internal/delivery"
	"github.com/streamlance/backend/internal/donations"
	"github.com/streamlance/backend/internal/middleware"
	"github.com/streamlance/backend/internal/models"
	"github.com/streamlance/backend/internal/realtime"
	"github.com/streamlance/backend/internal/schedule"
	"github.com/streamlance/backend/internal/streamers"
	"github.com/streamlance/backend/internal/worker"
	"github.com/streamlance/backend/pkg/database"
	"github.com/streamlance/backend/pkg/redis"
	"github.com/streamlance/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	playback := time.Duration(cfg.Playback.DurationSeconds) * time.Second
	sweepInterval := time.Duration(cfg.Sweep.IntervalSeconds) * time.Second

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Delivery queue with hub-backed change notifications.
	queue := delivery.NewQueue(rdb.Client, realtime.NewQueueNotifier(hub), playback, logger)
	timers := donations.NewTimerRegistry()

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Streamers and the live viewer-count feed
	streamerRepo := streamers.NewRepository(pool)
	viewerFeed := streamers.NewViewerFeed(rdb.Client, time.Duration(cfg.Viewers.CacheTTLSeconds)*time.Second, logger)
	streamerHandler := streamers.NewHandler(streamerRepo, viewerFeed, logger)

	// Availability calendar
	scheduleRepo := schedule.NewRepository(pool)
	scheduleService := schedule.NewService(scheduleRepo, logger)
	scheduleHandler := schedule.NewHandler(scheduleService)

	// Donations and playback orchestration
	donationRepo := donations.NewRepository(pool)
	donationService := donations.NewService(donationRepo, streamerRepo, viewerFeed, queue, hub, timers, playback, logger)
	donationHandler := donations.NewHandler(donationService, logger)

	// Campaigns
	campaignRepo := campaigns.NewRepository(pool)
	campaignService := campaigns.NewService(campaignRepo, streamerRepo, allocator.New(cfg.Allocator), queue, logger)
	campaignHandler := campaigns.NewHandler(campaignService, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Streamer profiles
		api.POST("/streamers", middleware.RequireRole(models.RoleStreamer, models.RoleAdmin), streamerHandler.Create)
		api.GET("/streamers", streamerHandler.List)
		api.GET("/streamers/:id", streamerHandler.GetByID)
		api.PATCH("/streamers/:id/rates", middleware.RequireRole(models.RoleStreamer, models.RoleAdmin), streamerHandler.UpdateRates)
		api.POST("/streamers/:id/viewers", streamerHandler.PushViewers)

		// Availability calendar
		api.POST("/streamers/:id/windows", middleware.RequireRole(models.RoleStreamer, models.RoleAdmin), scheduleHandler.CreateWindow)
		api.GET("/streamers/:id/windows", scheduleHandler.ListWindows)
		api.PATCH("/windows/:id", middleware.RequireRole(models.RoleStreamer, models.RoleAdmin), scheduleHandler.UpdateWindow)
		api.DELETE("/windows/:id", middleware.RequireRole(models.RoleStreamer, models.RoleAdmin), scheduleHandler.DeleteWindow)
		api.GET("/streamers/:id/validate-slot", scheduleHandler.ValidateSlot)
		api.GET("/streamers/:id/slots", scheduleHandler.AvailableSlots)

		// Donations
		api.POST("/donations", middleware.RequireRole(models.RoleCompany, models.RoleAdmin), donationHandler.Create)
		api.GET("/donations/:id", donationHandler.GetByID)
		api.GET("/streamers/:id/donations", donationHandler.ListByStreamer)

		// Delivery queue (streamer overlay)
		api.GET("/streamers/:id/queue", donationHandler.ListQueue)
		api.GET("/streamers/:id/queue/status", donationHandler.QueueStatus)
		api.GET("/streamers/:id/queue/next", middleware.RequireRole(models.RoleStreamer, models.RoleAdmin), donationHandler.NextForPlayback)
		api.POST("/streamers/:id/queue/skip", middleware.RequireRole(models.RoleStreamer, models.RoleAdmin), donationHandler.Skip)
		api.DELETE("/streamers/:id/queue", middleware.RequireRole(models.RoleAdmin), donationHandler.ClearQueue)

		// Campaigns
		api.POST("/campaigns", middleware.RequireRole(models.RoleCompany, models.RoleAdmin), campaignHandler.Create)
		api.GET("/campaigns", middleware.RequireRole(models.RoleCompany, models.RoleAdmin), campaignHandler.ListMine)
		api.GET("/campaigns/:id", campaignHandler.GetByID)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", func(c *gin.Context) {
		realtime.ServeWs(hub, logger, jwtValidate)(c)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background delivery sweep
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper := worker.NewSweeper(donationService, donationRepo, sweepInterval, playback, logger)
	go sweeper.Run(sweepCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	timers.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
