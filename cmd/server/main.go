package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ludoduel/ludo-server/internal/api"
	"github.com/ludoduel/ludo-server/internal/config"
	"github.com/ludoduel/ludo-server/internal/factory"
	"github.com/ludoduel/ludo-server/internal/services/auth"
	"github.com/ludoduel/ludo-server/internal/services/game"
	"github.com/ludoduel/ludo-server/internal/services/ledger"
	"github.com/ludoduel/ludo-server/internal/services/matchmaking"
	"github.com/ludoduel/ludo-server/internal/storage/postgres"
	redisstorage "github.com/ludoduel/ludo-server/internal/storage/redis"
)

func main() {
	var opts config.Options

	cmd := &cobra.Command{
		Use:   "ludo-server",
		Short: "Two-player Ludo game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", os.Getenv("LUDO_CONFIG"), "YAML config file (env: LUDO_CONFIG)")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts config.Options) error {
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	// Set up logging with JSON output
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	app, err := factory.New(factoryConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close error", slog.String("error", err.Error()))
		}
	}()

	// Relay change events published by every instance into local hubs
	if app.RedisRelay != nil {
		ready := make(chan struct{})
		relayErr := make(chan error, 1)
		go func() {
			relayErr <- app.RedisRelay.Run(ctx, ready)
		}()
		select {
		case <-ready:
		case err := <-relayErr:
			logger.Error("redis relay failed to start", slog.Any("error", err))
			return err
		case <-ctx.Done():
			return nil
		}
		go func() {
			if err := <-relayErr; err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis relay stopped", slog.String("error", err.Error()))
			}
		}()
	}

	go housekeeping(ctx, app, cfg.Realtime.CleanupPeriod)

	router := api.NewRouter(api.RouterConfig{
		Logger:             logger,
		AuthService:        app.AuthService,
		Ledger:             app.Ledger,
		MatchmakingService: app.MatchmakingService,
		GameController:     app.GameController,
		ChatService:        app.ChatService,
		HubManager:         app.HubManager,
		AllowedOrigins:     cfg.Realtime.AllowedOrigins,
	})

	server := api.NewServer(router, app.HubManager, api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("redis_events", cfg.Realtime.UseRedis),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

// housekeeping drops idle hubs and expired sessions until ctx is done
func housekeeping(ctx context.Context, app *factory.App, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			app.HubManager.CleanupEmptyHubs()
			app.AuthService.CleanExpiredSessions()
		case <-ctx.Done():
			return
		}
	}
}

func factoryConfig(cfg *config.Config, logger *slog.Logger) factory.Config {
	fc := factory.Config{
		Logger:           logger,
		StorageType:      cfg.Storage.Type,
		UseRedisNotifier: cfg.Realtime.UseRedis,
		AuthConfig:       auth.Config{SessionDuration: cfg.Auth.SessionDuration},
		LedgerConfig: ledger.Config{
			StartingBalance:    cfg.Ledger.StartingBalance,
			PlatformFeePercent: cfg.Ledger.PlatformFeePercent,
			MaxAttempts:        cfg.Ledger.MaxAttempts,
		},
		MatchmakingConfig: matchmaking.Config{
			StaleAfter:        cfg.Game.StaleAfter,
			NoOpponentTimeout: cfg.Game.NoOpponentTimeout,
			AllowedEntryFees:  cfg.Game.AllowedEntryFees,
		},
		GameConfig: game.Config{AutoPassDelay: cfg.Game.AutoPassDelay},
	}

	if cfg.Storage.Type == factory.StorageTypeRedis || cfg.Realtime.UseRedis {
		fc.RedisConfig = &redisstorage.Config{
			URL:             cfg.Redis.URL,
			PoolSize:        cfg.Redis.PoolSize,
			MinIdleConns:    cfg.Redis.MinIdleConns,
			GuestPlayerTTL:  cfg.Redis.GuestPlayerTTL,
			FinishedGameTTL: cfg.Redis.FinishedGameTTL,
			ChatTTL:         cfg.Redis.ChatTTL,
		}
	}
	if cfg.Storage.Type == factory.StorageTypePostgres {
		fc.PostgresConfig = &postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			AutoMigrate:     cfg.Postgres.AutoMigrate,
		}
	}
	return fc
}
