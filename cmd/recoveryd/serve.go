package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/99minutos/account-recovery/internal/api"
	"github.com/99minutos/account-recovery/internal/core/service"
	"github.com/99minutos/account-recovery/internal/infrastructure/queue"
	"github.com/99minutos/account-recovery/internal/infrastructure/session"
	"github.com/99minutos/account-recovery/internal/pkg/config"
	"github.com/99minutos/account-recovery/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Configuration is read from the environment;
JWT_SECRET is required. With STORE_BACKEND=postgres pending migrations are
applied before the server starts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadWith(ctx, envconfig.OsLookuper())
			if err != nil {
				return err
			}
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Pretty(),
		Service: "recoveryd",
	})

	hasher, err := buildHasher(cfg.Password)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	sessions, err := session.NewJWTIssuer(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}

	b, err := buildBackends(ctx, cfg, logger.Component("backends"))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("closing backends")
		}
	}()

	// Background workers stop with workerCtx; wg tracks the sweeper.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancelWorkers()
		wg.Wait()
	}()

	dispatcher := queue.NewDispatcher(cfg.Reset.NoticeWorkers, queue.NewLogNotifier(logger.Component("notifier")), logger.Component("dispatcher"))
	dispatcher.Start(workerCtx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Wait()
	}()

	if b.sweeper != nil && cfg.Reset.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.sweeper.RunSweeper(workerCtx, cfg.Reset.SweepInterval, logger.Component("sweeper"))
		}()
	}

	auth := service.NewAuthService(b.users, b.tokens, hasher, sessions,
		service.WithNoticeQueue(dispatcher),
		service.WithLogger(logger.Component("auth")),
	)

	e := api.NewRouter(api.Deps{
		Auth:     auth,
		Sessions: sessions,
		Health:   b.health,
		Log:      logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Str("tokens", cfg.TokenBackend).
			Str("password_scheme", hasher.Scheme()).
			Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
