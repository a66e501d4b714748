package credstore

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted by Config.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = driverSQLite
	DriverPostgres = driverPostgres
	DriverRedis    = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Driver      string `env:"CIRCL_STORE_DRIVER" envDefault:"memory"`
	DSN         string `env:"CIRCL_STORE_DSN"`
	RedisAddr   string `env:"CIRCL_REDIS_ADDR"`
	RedisPrefix string `env:"CIRCL_REDIS_PREFIX" envDefault:"circl:cred:"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse store env: %w", err)
	}
	return cfg, nil
}

// Open returns the backend named by cfg.Driver. An empty driver means memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(cfg.DSN)
	case DriverPostgres:
		return OpenPostgres(cfg.DSN)
	case DriverRedis:
		prefix := cfg.RedisPrefix
		if prefix == "" {
			prefix = DefaultRedisPrefix
		}
		return DialRedis(ctx, cfg.RedisAddr, WithPrefix(prefix))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
