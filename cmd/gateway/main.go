package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsdeck/session-gateway/internal/api"
	"github.com/opsdeck/session-gateway/internal/core/service"
	mongodb "github.com/opsdeck/session-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/opsdeck/session-gateway/internal/infrastructure/db/redis"
	"github.com/opsdeck/session-gateway/internal/infrastructure/upstream"
	"github.com/opsdeck/session-gateway/internal/pkg/config"
	"github.com/opsdeck/session-gateway/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	sessionRepo := redisdb.NewSessionRepository(rdb, cfg.SessionKeyPrefix)
	auditRepo := mongodb.NewAuditRepository(db)
	authenticator := upstream.NewClient(cfg.UpstreamAuthURL, cfg.UpstreamTimeout, log)

	manager := service.NewSessionManager(authenticator, sessionRepo, auditRepo, log)
	if err := manager.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("session restore failed")
	}
	guard := service.NewGuard(manager)

	e := api.NewRouter(api.Deps{
		Sessions:       manager,
		Guard:          guard,
		Audit:          auditRepo,
		Redis:          rdb,
		Mongo:          db,
		GatewayKeyHash: cfg.GatewayKeyHash,
		Log:            log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("session gateway listening")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
