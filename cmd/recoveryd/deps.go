package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-recovery/internal/api/handler"
	"github.com/99minutos/account-recovery/internal/api/metrics"
	"github.com/99minutos/account-recovery/internal/core/ports"
	"github.com/99minutos/account-recovery/internal/infrastructure/db/memory"
	mongostore "github.com/99minutos/account-recovery/internal/infrastructure/db/mongo"
	"github.com/99minutos/account-recovery/internal/infrastructure/db/postgres"
	redisstore "github.com/99minutos/account-recovery/internal/infrastructure/db/redis"
	"github.com/99minutos/account-recovery/internal/infrastructure/password"
	"github.com/99minutos/account-recovery/internal/pkg/config"
	"github.com/99minutos/account-recovery/internal/pkg/startup"
)

// backends holds everything built from the STORE_BACKEND and TOKEN_BACKEND
// settings.
type backends struct {
	users  ports.UserStore
	tokens ports.ResetTokenRegistry
	// sweeper is set only for the in-memory registry.
	sweeper *memory.ResetRegistry
	health  map[string]handler.Pinger
	closers []func(context.Context) error
}

func (b *backends) onClose(fn func(context.Context) error) {
	b.closers = append(b.closers, fn)
}

// Close releases connections in reverse order of creation.
func (b *backends) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func buildBackends(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backends, error) {
	b := &backends{health: make(map[string]handler.Pinger)}

	if err := b.buildUserStore(ctx, cfg, log); err != nil {
		_ = b.Close(context.Background())
		return nil, err
	}
	if err := b.buildTokenRegistry(ctx, cfg); err != nil {
		_ = b.Close(context.Background())
		return nil, err
	}
	return b, nil
}

func (b *backends) buildUserStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		b.users = memory.NewUserStore()

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.URL, Retries: startup.DefaultAttempts})
		if err != nil {
			return err
		}
		b.onClose(func(context.Context) error { pool.Close(); return nil })
		if err := migrateUp(cfg.Postgres.URL, log); err != nil {
			return err
		}
		store := postgres.NewUserStore(pool)
		b.users = store
		b.health["postgres"] = store

	case config.BackendMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Retries:  startup.DefaultAttempts,
		})
		if err != nil {
			return err
		}
		b.onClose(client.Disconnect)
		store := mongostore.NewUserStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		b.users = store
		b.health["mongodb"] = store

	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	log.Info().Str("backend", cfg.StoreBackend).Msg("account store ready")
	return nil
}

func (b *backends) buildTokenRegistry(ctx context.Context, cfg *config.Config) error {
	switch cfg.TokenBackend {
	case config.BackendMemory:
		reg := memory.NewResetRegistry(cfg.Reset.TokenTTL,
			memory.WithSweepHook(func(n int) { metrics.ResetTokensSwept.Add(float64(n)) }),
		)
		b.tokens = reg
		b.sweeper = reg

	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:    cfg.Redis.Addr,
			DB:      cfg.Redis.DB,
			Retries: startup.DefaultAttempts,
		})
		if err != nil {
			return err
		}
		b.onClose(func(context.Context) error { return client.Close() })
		b.tokens = redisstore.NewResetRegistry(client, cfg.Reset.TokenTTL)
		b.health["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})

	default:
		return fmt.Errorf("unknown token backend %q", cfg.TokenBackend)
	}
	return nil
}

func buildHasher(cfg config.PasswordConfig) (*password.Hasher, error) {
	return password.NewHasher(password.Config{
		Scheme:     cfg.Scheme,
		BcryptCost: cfg.BcryptCost,
		Argon2: password.Argon2Params{
			MemoryKB: cfg.Argon2MemoryK,
			Time:     cfg.Argon2Time,
			Threads:  cfg.Argon2Threads,
		},
	})
}

func migrateUp(databaseURL string, log zerolog.Logger) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(); err != nil {
		return err
	}
	v, _, err := m.Version()
	if err != nil {
		return err
	}
	log.Info().Uint("version", v).Msg("database schema up to date")
	return nil
}
