package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anonto42/followpulse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB holds the database connections
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	SQLite   *sql.DB

	logger *zap.Logger
}

// InitDB opens PostgreSQL, plus MongoDB or SQLite when the notification store needs them.
func InitDB(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	db := &DB{logger: logger}

	postgresDB, err := initPostgres(cfg.PostgresConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.Postgres = postgresDB
	logger.Info("connected to PostgreSQL")

	switch cfg.NotificationStore {
	case StoreMongo:
		client, err := initMongo(ctx, cfg.MongoURI)
		if err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db.Mongo = client
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	case StoreSQLite:
		sqlite, err := repositories.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			db.CloseDB()
			return nil, err
		}
		db.SQLite = sqlite
		logger.Info("opened SQLite notification store", zap.String("path", cfg.SQLitePath))
	}
	return db, nil
}

// initPostgres opens the GORM connection. TranslateError lets repositories
// see unique violations as gorm.ErrDuplicatedKey.
func initPostgres(connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			db.logger.Error("getting SQL DB from GORM", zap.Error(err))
		} else if err := sqlDB.Close(); err != nil {
			db.logger.Error("closing PostgreSQL connection", zap.Error(err))
		} else {
			db.logger.Info("PostgreSQL connection closed")
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			db.logger.Error("closing MongoDB connection", zap.Error(err))
		} else {
			db.logger.Info("MongoDB connection closed")
		}
	}

	if db.SQLite != nil {
		if err := db.SQLite.Close(); err != nil {
			db.logger.Error("closing SQLite store", zap.Error(err))
		}
	}
}

// NotificationStore returns the repository selected by NOTIFICATION_STORE.
func (db *DB) NotificationStore(ctx context.Context, cfg *Config) (repositories.NotificationRepository, error) {
	switch cfg.NotificationStore {
	case StoreMongo:
		repo := repositories.NewMongoNotificationRepository(db.Mongo.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case StoreSQLite:
		return repositories.NewSQLiteNotificationRepository(db.SQLite), nil
	default:
		return repositories.NewPostgresNotificationRepository(db.Postgres), nil
	}
}
