package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Notification store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
)

// Auth modes for the /api group.
const (
	AuthNone     = "none"
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	PostgresConnStr   string `mapstructure:"POSTGRES_CONN_STR"`
	MongoURI          string `mapstructure:"MONGO_URI"`
	MongoDatabase     string `mapstructure:"MONGO_DATABASE"`
	NotificationStore string `mapstructure:"NOTIFICATION_STORE"`
	SQLitePath        string `mapstructure:"SQLITE_PATH"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisChannel  string `mapstructure:"REDIS_CHANNEL"`

	AuthMode                string `mapstructure:"AUTH_MODE"`
	JWTSecret               string `mapstructure:"JWT_SECRET"`
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`
	RateLimitPerMin         int    `mapstructure:"RATE_LIMIT_PER_MIN"`

	WSPingInterval time.Duration `mapstructure:"WS_PING_INTERVAL"`
	WSPongTimeout  time.Duration `mapstructure:"WS_PONG_TIMEOUT"`

	PersistTimeout      time.Duration `mapstructure:"PERSIST_TIMEOUT"`
	PersistRetries      int           `mapstructure:"PERSIST_RETRIES"`
	PersistRetryBackoff time.Duration `mapstructure:"PERSIST_RETRY_BACKOFF"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":                      "8080",
	"ENV":                       "development",
	"LOG_LEVEL":                 "info",
	"POSTGRES_CONN_STR":         "",
	"MONGO_URI":                 "",
	"MONGO_DATABASE":            "followpulse",
	"NOTIFICATION_STORE":        StorePostgres,
	"SQLITE_PATH":               "followpulse.db",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"REDIS_CHANNEL":             "notification-events",
	"AUTH_MODE":                 AuthNone,
	"JWT_SECRET":                "",
	"FIREBASE_CREDENTIALS_PATH": "",
	"RATE_LIMIT_PER_MIN":        600,
	"WS_PING_INTERVAL":          "25s",
	"WS_PONG_TIMEOUT":           "60s",
	"PERSIST_TIMEOUT":           "5s",
	"PERSIST_RETRIES":           0,
	"PERSIST_RETRY_BACKOFF":     "200ms",
	"SHUTDOWN_TIMEOUT":          "10s",
}

// Load reads .env (if present), then an optional config.yaml, then the
// environment. Environment values win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PostgresConnStr == "" {
		return errors.New("POSTGRES_CONN_STR is required")
	}

	c.NotificationStore = strings.ToLower(c.NotificationStore)
	switch c.NotificationStore {
	case StorePostgres, StoreSQLite:
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when NOTIFICATION_STORE=mongo")
		}
	default:
		return fmt.Errorf("unknown NOTIFICATION_STORE %q", c.NotificationStore)
	}

	c.AuthMode = strings.ToLower(c.AuthMode)
	switch c.AuthMode {
	case AuthNone:
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthFirebase:
		if c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required when AUTH_MODE=firebase")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
