package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/meetme/matchmaker/internal/app"
	"github.com/meetme/matchmaker/internal/cache"
	"github.com/meetme/matchmaker/internal/config"
	"github.com/meetme/matchmaker/internal/db"
	"github.com/meetme/matchmaker/internal/logger"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/server"
	"github.com/meetme/matchmaker/internal/service/admin"
	"github.com/meetme/matchmaker/internal/transport/telegram"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedDemoData(database, 20, nil, logger.Module("seed")); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	// Notification fan-out: chat first, then the event stream.
	var notifiers []notify.Notifier
	botAPI, err := connectBot(cfg)
	if err != nil {
		log.Error("failed to connect telegram bot", "err", err)
		os.Exit(1)
	}
	if botAPI != nil {
		notifiers = append(notifiers, telegram.NewNotifier(botAPI))
	}
	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS.URL, logger.Module("nats"))
		if err != nil {
			log.Error("failed to connect to nats", "err", err)
			os.Exit(1)
		}
		defer func() { _ = nc.Drain() }()
		notifiers = append(notifiers, notify.NewNATSPublisher(nc))
	}

	appCtx := app.New(cfg, database, redisCache, log, notifiers...)
	defer appCtx.Close()

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { appCtx.Sweeper.Run(ctx) })

	run(func() {
		h := server.NewOpsRouter(appCtx.Pingers())
		if err := server.StartHTTPServer(ctx, cfg.HTTP.Addr, h, log); err != nil {
			log.Error("ops http server failed", "err", err)
			stop()
		}
	})

	if botAPI != nil {
		bot := telegram.New(botAPI, appCtx.Engine, appCtx.Moderation, appCtx.Wizard, appCtx.Limits, appCtx.Notifier, log)
		run(func() { bot.Listen(ctx, botAPI) })
	} else {
		log.Warn("BOT_TOKEN not set, chat transport disabled")
	}

	registrars := []server.Registrar{
		admin.NewRegistrar(appCtx.Moderation, log),
	}
	if err := server.StartGRPCServer(ctx, cfg, log, registrars...); err != nil {
		log.Error("gRPC server failed", "err", err)
		stop()
	}

	wg.Wait()
	log.Info("shutdown complete")
}

// connectBot returns nil when no token is configured.
func connectBot(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	if cfg.Telegram.Token == "" {
		return nil, nil
	}
	return telegram.Connect(cfg.Telegram.Token, cfg.Telegram.RequestTimeout)
}
