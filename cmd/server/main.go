package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/logger"
	"inkwell/internal/router"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.GinMode == gin.ReleaseMode, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	log := logger.WithContext("server", "main")

	// Initialize Database
	db.Init(cfg.DatabaseURL)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := db.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, falling back to in-process code store")
		} else {
			redisClient = client
			defer redisClient.Close()
			log.Info("Redis connected")
		}
	}

	// 计数校正任务
	counters := services.NewCounterService(db.DB)
	counters.Start(ctx)
	counters.StartNightly(ctx)

	r, err := router.New(cfg, router.Deps{
		DB:       db.DB,
		Redis:    redisClient,
		Mailer:   services.NewMailService(cfg.SMTP, cfg.SiteName, cfg.TemplatesDir),
		Counters: counters,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("%s server starting on :%s", cfg.SiteName, cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		return
	}
	log.Info("Server shutdown complete")
}
