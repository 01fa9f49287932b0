package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/datachat-ai/datachat/internal/config"
	"github.com/datachat-ai/datachat/internal/db"
	"github.com/datachat-ai/datachat/internal/endpoint"
	"github.com/datachat-ai/datachat/internal/handlers"
	"github.com/datachat-ai/datachat/internal/history"
	"github.com/datachat-ai/datachat/internal/logger"
	"github.com/datachat-ai/datachat/internal/platform"
	"github.com/datachat-ai/datachat/internal/platform/discord"
	"github.com/datachat-ai/datachat/internal/platform/local"
	"github.com/datachat-ai/datachat/internal/platform/telegram"
	"github.com/datachat-ai/datachat/internal/render"
	"github.com/datachat-ai/datachat/internal/server"
	"github.com/datachat-ai/datachat/internal/turn"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDurable,
			provideStore,
			provideEndpoint,
			providePolicy,
			provideOrchestrator,
			local.NewHub,
			provideAdapters,
			provideManager,
			handlers.NewPingHandler,
			handlers.NewChatHandler,
			handlers.NewHistoryHandler,
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startPlatformManager,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDurable(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (history.Durable, error) {
	if !cfg.Postgres.Enabled {
		log.Info("postgres disabled, durable history off")
		return nil, nil
	}
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, err
	}
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { pool.Close(); return nil }})
	return providePostgresDurable(log, pool), nil
}

func providePostgresDurable(log *slog.Logger, pool *pgxpool.Pool) history.Durable {
	return history.NewPostgresDurable(log, pool)
}

func provideStore(log *slog.Logger, durable history.Durable, cfg config.Config) *history.Store {
	return history.NewStore(log, durable, cfg.History.Capacity)
}

func provideEndpoint(log *slog.Logger, cfg config.Config) *endpoint.Client {
	return endpoint.NewClient(log, cfg.Endpoint.URL, cfg.Endpoint.Timeout())
}

func providePolicy(cfg config.Config) *render.Policy {
	return render.NewPolicy(cfg.Render.ResendCards)
}

func provideOrchestrator(log *slog.Logger, store *history.Store, client *endpoint.Client, policy *render.Policy) *turn.Orchestrator {
	return turn.NewOrchestrator(log, store, client, policy)
}

func provideAdapters(log *slog.Logger, cfg config.Config, hub *local.Hub) []platform.Adapter {
	adapters := []platform.Adapter{local.NewAdapter(hub)}
	if cfg.Telegram.Enabled {
		adapters = append(adapters, telegram.NewAdapter(log, cfg.Telegram.BotToken))
	}
	if cfg.Discord.Enabled {
		adapters = append(adapters, discord.NewAdapter(log, cfg.Discord.BotToken))
	}
	return adapters
}

func provideManager(log *slog.Logger, orch *turn.Orchestrator, adapters []platform.Adapter) *platform.Manager {
	return platform.NewManager(log, orch.HandleEvent, adapters...)
}

func provideServer(log *slog.Logger, cfg config.Config, pingHandler *handlers.PingHandler, chatHandler *handlers.ChatHandler, historyHandler *handlers.HistoryHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret, pingHandler, chatHandler, historyHandler)
}

func startSweeper(lc fx.Lifecycle, log *slog.Logger, store *history.Store, cfg config.Config) error {
	maxIdle, err := cfg.History.SweepIdleDuration()
	if err != nil {
		return fmt.Errorf("parse sweep_idle: %w", err)
	}
	sweeper, err := history.NewSweeper(log, store, cfg.History.SweepSpec, maxIdle)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { sweeper.Start(); return nil },
		OnStop:  func(context.Context) error { sweeper.Stop(); return nil },
	})
	return nil
}

func startPlatformManager(lc fx.Lifecycle, manager *platform.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { manager.Start(ctx); return nil },
		OnStop:  func(stopCtx context.Context) error { cancel(); return manager.Shutdown(stopCtx) },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
