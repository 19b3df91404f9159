package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shanialy/HRM/internal/app/registry"
	"github.com/shanialy/HRM/internal/app/server"
	"github.com/shanialy/HRM/internal/config"
	"github.com/shanialy/HRM/internal/core/services"
	"github.com/shanialy/HRM/internal/platform/logger"
	"github.com/shanialy/HRM/internal/platform/telemetry"
	"github.com/shanialy/HRM/internal/plugins/postgres"
	redisPlugin "github.com/shanialy/HRM/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error("telemetry shutdown failed", "err", err)
			}
		}()
	}

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	convRepo := postgres.NewConversationRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb)

	// Core services
	hub := registry.NewRegistry()
	txManager := services.NewTxManager(pdb)
	tokenSvc := services.NewTokenService(cfg.JWTSecret)
	userSvc := services.NewUserService(log, userRepo)
	chatSvc := services.NewChatService(log, userRepo, convRepo, msgRepo, presStore, hub, txManager, *cfg.Gateway)

	// Server
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Addr, userSvc, tokenSvc, chatSvc, hub, cfg.Gateway.AllowedOrigins)
	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
