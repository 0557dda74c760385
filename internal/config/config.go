// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thereayou/chatsync/internal/chat"
)

type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	JWTSecret   string        `env:"JWT_SECRET"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"24h"`

	RoomsCollection       string `env:"CHAT_ROOMS_COLLECTION" envDefault:"rooms"`
	UsersCollection       string `env:"CHAT_USERS_COLLECTION" envDefault:"users"`
	OrderRoomsByUpdatedAt bool   `env:"CHAT_ORDER_ROOMS_BY_UPDATED_AT" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadDotenv reads .env.local, then .env. Missing files are not an error.
func LoadDotenv() {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if err := c.Chat().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Chat returns the collection names handed to the sync engine.
func (c Config) Chat() chat.Config {
	return chat.Config{
		RoomsCollection: c.RoomsCollection,
		UsersCollection: c.UsersCollection,
	}
}

func (c Config) RoomsOptions() chat.RoomsOptions {
	return chat.RoomsOptions{OrderByUpdatedAt: c.OrderRoomsByUpdatedAt}
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if strings.EqualFold(c.LogFormat, "console") {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
