// Package main запускает сервис начислений: чат-бот, уведомления и административное API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/reward-ledger/internal/bot"
	"github.com/mmeshcher/reward-ledger/internal/config"
	"github.com/mmeshcher/reward-ledger/internal/handler"
	"github.com/mmeshcher/reward-ledger/internal/ledger"
	"github.com/mmeshcher/reward-ledger/internal/middleware"
	"github.com/mmeshcher/reward-ledger/internal/notify"
	"github.com/mmeshcher/reward-ledger/internal/repository"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.UsesDefaultAdminPass() {
		sugar.Warnw("admin secret is the default value, set ADMIN_PASS")
	}

	store, err := openStore(cfg, sugar)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer store.Close()

	var (
		api    *tgbotapi.BotAPI
		sender notify.Sender = notify.NewLogSender(logger)
	)
	if cfg.TelegramToken != "" {
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			sugar.Fatalw("telegram initialization error", "error", err.Error())
		}
		sender = notify.NewTelegramSender(api)
		sugar.Infow("telegram bot authorized", "username", api.Self.UserName)
	} else {
		sugar.Warnw("telegram token not provided, bot disabled")
	}

	dispatcher := notify.NewDispatcher(sender, notify.NewRenderer(cfg.NotifyLanguage),
		cfg.AdminChatID, cfg.NotifyQueueSize, logger)
	engine := ledger.NewEngine(store, dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if seeded, err := engine.SeedIfEmpty(ctx); err != nil {
		sugar.Warnw("task seeding skipped", "error", err.Error())
	} else if seeded {
		sugar.Info("demo tasks created")
	}

	// Диспетчер живёт в отдельной группе с собственным контекстом: его отменяют только
	// после g.Wait(), чтобы доставить события от завершающихся команд.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	var dispatchGroup errgroup.Group
	dispatchGroup.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})

	h := handler.NewHandler(engine, logger, middleware.NewAdminAuth(cfg.AdminPass))

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if api != nil {
		commands := bot.NewCommands(engine, cfg.BotUsername, cfg.AdminChatID, logger)
		commands.SetBotUsername(api.Self.UserName)
		poller := bot.NewPoller(api, commands, bot.NewLimiter(cfg.ChatRateLimit, config.ChatBurst), logger)

		g.Go(func() error {
			sugar.Info("starting telegram polling")
			return poller.Run(ctx)
		})
	}

	g.Go(func() error {
		sugar.Infow("starting reward ledger server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	err = g.Wait()

	stopDispatch()
	if dErr := dispatchGroup.Wait(); dErr != nil {
		sugar.Warnw("notification dispatcher stopped with error", "error", dErr.Error())
	}

	if err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func openStore(cfg *config.Config, sugar *zap.SugaredLogger) (repository.Store, error) {
	if cfg.DatabaseURI == "" {
		sugar.Warnw("DATABASE_URI not provided, using in-memory store (not persistent)")
		return repository.NewMemoryStore(), nil
	}
	pg, err := repository.NewPostgresStore(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}
	return pg, nil
}
