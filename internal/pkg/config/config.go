package config

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store and token backends selectable at startup.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
)

type Config struct {
	Port       string        `env:"PORT,       default=8080"`
	Env        string        `env:"ENV,        default=development"`
	LogLevel   string        `env:"LOG_LEVEL,  default=info"`
	JWTSecret  string        `env:"JWT_SECRET, required"`
	SessionTTL time.Duration `env:"SESSION_TTL, default=24h"`

	StoreBackend string `env:"STORE_BACKEND, default=memory"`
	TokenBackend string `env:"TOKEN_BACKEND, default=memory"`

	Reset    ResetConfig
	Password PasswordConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
}

type ResetConfig struct {
	TokenTTL      time.Duration `env:"RESET_TOKEN_TTL,      default=1h"`
	SweepInterval time.Duration `env:"RESET_SWEEP_INTERVAL, default=5m"`
	NoticeWorkers int           `env:"NOTICE_WORKERS,       default=4"`
}

type PasswordConfig struct {
	Scheme        string `env:"PASSWORD_SCHEME,      default=bcrypt"`
	BcryptCost    int    `env:"PASSWORD_BCRYPT_COST, default=10"`
	Argon2MemoryK uint32 `env:"ARGON2_MEMORY_KB,     default=65536"`
	Argon2Time    uint32 `env:"ARGON2_TIME,          default=1"`
	Argon2Threads uint8  `env:"ARGON2_THREADS,       default=2"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=account_recovery"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type PostgresConfig struct {
	URL string `env:"DATABASE_URL, default=postgres://localhost:5432/account_recovery?sslmode=disable"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration from l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects backend names the service cannot build.
func (c *Config) Validate() error {
	if !slices.Contains([]string{BackendMemory, BackendPostgres, BackendMongo}, c.StoreBackend) {
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if !slices.Contains([]string{BackendMemory, BackendRedis}, c.TokenBackend) {
		return fmt.Errorf("config: unknown TOKEN_BACKEND %q", c.TokenBackend)
	}
	if c.Reset.TokenTTL <= 0 {
		return fmt.Errorf("config: RESET_TOKEN_TTL must be positive, got %s", c.Reset.TokenTTL)
	}
	return nil
}

// Pretty reports whether logs should be human-readable.
func (c *Config) Pretty() bool {
	return c.Env == "development"
}
