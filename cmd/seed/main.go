package main

import (
	"context"
	"log"

	"github.com/anonto42/followpulse/backend/internal/repositories"
	"github.com/anonto42/followpulse/backend/internal/router"
	"github.com/anonto42/followpulse/backend/pkg/config"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := config.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := config.InitDB(ctx, cfg, logger.Named("db"))
	if err != nil {
		logger.Fatal("opening databases", zap.Error(err))
	}
	defer db.CloseDB()

	if err := router.Migrate(db.Postgres, cfg.NotificationStore == config.StorePostgres); err != nil {
		logger.Fatal("migrating", zap.Error(err))
	}

	store, err := db.NotificationStore(ctx, cfg)
	if err != nil {
		logger.Fatal("opening notification store", zap.Error(err))
	}

	res, err := repositories.Seed(ctx, db.Postgres, repositories.NewPostgresFollowRepository(db.Postgres), store)
	if err != nil {
		logger.Fatal("seeding", zap.Error(err))
	}
	logger.Info("seeding completed",
		zap.Int("users", res.Users), zap.Int("follows", res.Follows), zap.Int("notifications", res.Notifications))
}
