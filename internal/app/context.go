package app

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/meetme/matchmaker/internal/cache"
	"github.com/meetme/matchmaker/internal/config"
	"github.com/meetme/matchmaker/internal/moderation"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/pairing"
	"github.com/meetme/matchmaker/internal/registration"
	"github.com/meetme/matchmaker/internal/repository"
	"github.com/meetme/matchmaker/internal/selector"
	"github.com/meetme/matchmaker/internal/server"
	"github.com/meetme/matchmaker/internal/sweeper"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.) and the
// services built on top of them.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger

	Store      *repository.Store
	Limits     registration.Limits
	Engine     *pairing.Engine
	Wizard     *registration.Wizard
	Notifier   notify.Notifier
	Moderation *moderation.Service
	Sweeper    *sweeper.Sweeper
}

// New wires the services. Every notifier receives every event; with none
// given, events are dropped.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, notifiers ...notify.Notifier) *AppContext {
	var n notify.Notifier = notify.Nop{}
	switch len(notifiers) {
	case 0:
	case 1:
		n = notifiers[0]
	default:
		n = notify.Multi(notifiers)
	}

	limits := registration.Limits{MinAge: cfg.Matching.MinAge, MaxAge: cfg.Matching.MaxAge}
	store := repository.NewStore(db)
	sel := selector.New(db, cfg.Matching.DefaultAgeDiff, rand.New(rand.NewSource(time.Now().UnixNano())))
	engine := pairing.New(store, sel, limits, pairing.Options{
		BanClosesPairHistory: cfg.Matching.BanClosesPairHistory,
	}, logger)

	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Store:      store,
		Limits:     limits,
		Engine:     engine,
		Wizard:     registration.NewWizard(rdb, limits, cfg.Matching.DraftTTL),
		Notifier:   n,
		Moderation: moderation.New(engine, rdb, n, moderation.NewAllowList(cfg.Matching.AdminIDs), logger),
		Sweeper: sweeper.New(engine, n, sweeper.Config{
			Interval:           cfg.Matching.SweepInterval,
			PendingPairTimeout: cfg.Matching.PendingPairTimeout,
			RejectionTimeout:   cfg.Matching.RejectionTimeout,
		}, logger, nil),
	}
}

// Pingers lists the dependencies /healthz checks.
func (a *AppContext) Pingers() map[string]server.Pinger {
	return map[string]server.Pinger{
		"db": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": a.RedisCache.Ping,
	}
}

// Close releases connections.
func (a *AppContext) Close() {
	if err := a.RedisCache.Close(); err != nil {
		a.Logger.Warn("redis close failed", "err", err)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Logger.Warn("db close failed", "err", err)
		}
	}
}
