// Package moderation is the admin surface: profile approval, bans, unpair
// arbitration and reporting. Every call is checked against the admin
// allow-list before anything is read or written.
package moderation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/meetme/matchmaker/internal/cache"
	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/pairing"
	"github.com/meetme/matchmaker/internal/repository"
)

const (
	statsTTL     = time.Minute
	defaultLimit = 10
	maxLimit     = 100
)

// Service implements the moderation operations.
type Service struct {
	engine   *pairing.Engine
	store    *repository.Store
	cache    *cache.RedisCache
	notifier notify.Notifier
	admins   AllowList
	log      *slog.Logger
}

// New creates a Service. A nil cache disables stats caching.
func New(engine *pairing.Engine, c *cache.RedisCache, n notify.Notifier, admins AllowList, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		engine:   engine,
		store:    engine.Store(),
		cache:    c,
		notifier: n,
		admins:   admins,
		log:      log.With("module", "moderation"),
	}
}

// Admins exposes the allow-list to transports.
func (s *Service) Admins() AllowList { return s.admins }

func (s *Service) authorize(adminID int64) error {
	if !s.admins.IsAdmin(adminID) {
		s.log.Warn("admin action denied", "actor_id", adminID)
		return svcErr.ErrAccessDenied
	}
	return nil
}

// apply runs an engine transition on behalf of an admin, then drops the
// cached stats and delivers the resulting notifications.
func (s *Service) apply(ctx context.Context, adminID int64, action string, fn func() (*pairing.Result, error)) (*pairing.Result, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	res, err := fn()
	if err != nil {
		return nil, err
	}
	s.log.Info("admin action", "action", action, "admin_id", adminID, "outcome", res.Outcome)
	s.invalidateStats(ctx)
	notify.Deliver(ctx, s.notifier, s.log, res.Events...)
	return res, nil
}

// Approve admits a profile to the matching pool.
func (s *Service) Approve(ctx context.Context, adminID, userID int64) (*pairing.Result, error) {
	return s.apply(ctx, adminID, "approve", func() (*pairing.Result, error) {
		return s.engine.ApproveProfile(ctx, userID)
	})
}

// Reject rejects a profile.
func (s *Service) Reject(ctx context.Context, adminID, userID int64) (*pairing.Result, error) {
	return s.apply(ctx, adminID, "reject", func() (*pairing.Result, error) {
		return s.engine.RejectProfile(ctx, userID)
	})
}

// Ban bans a user and releases its counterpart.
func (s *Service) Ban(ctx context.Context, adminID, userID int64, reason string) (*pairing.Result, error) {
	return s.apply(ctx, adminID, "ban", func() (*pairing.Result, error) {
		return s.engine.Ban(ctx, userID, reason)
	})
}

// Unban lifts a ban.
func (s *Service) Unban(ctx context.Context, adminID, userID int64) (*pairing.Result, error) {
	return s.apply(ctx, adminID, "unban", func() (*pairing.Result, error) {
		return s.engine.Unban(ctx, userID)
	})
}

// ApproveUnpair grants an unpair request.
func (s *Service) ApproveUnpair(ctx context.Context, adminID int64, requestID uint64, comment string) (*pairing.Result, error) {
	return s.apply(ctx, adminID, "approve_unpair", func() (*pairing.Result, error) {
		return s.engine.ApproveUnpair(ctx, requestID, optional(comment))
	})
}

// DenyUnpair refuses an unpair request.
func (s *Service) DenyUnpair(ctx context.Context, adminID int64, requestID uint64, comment string) (*pairing.Result, error) {
	return s.apply(ctx, adminID, "deny_unpair", func() (*pairing.Result, error) {
		return s.engine.DenyUnpair(ctx, requestID, optional(comment))
	})
}

// ForceUnpair dissolves a user's pair without a request.
func (s *Service) ForceUnpair(ctx context.Context, adminID, userID int64) (*pairing.Result, error) {
	return s.apply(ctx, adminID, "force_unpair", func() (*pairing.Result, error) {
		return s.engine.ForceUnpair(ctx, userID)
	})
}

// Stats returns the dashboard snapshot.
// Cache-first strategy:
//  1. Attempts to read the JSON snapshot from Redis (admin:stats).
//  2. On miss or decode error, collects from the DB.
//  3. Stores the fresh snapshot with a one minute TTL.
func (s *Service) Stats(ctx context.Context, adminID int64) (*repository.Stats, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached repository.Stats
		if err := s.cache.GetJSON(ctx, s.cache.KeyForStats(), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("stats cache read failed", "err", err)
		}
	}

	stats, err := s.store.Stats.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, s.cache.KeyForStats(), stats, statsTTL); err != nil {
			s.log.Warn("stats cache write failed", "err", err)
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.KeyForStats()); err != nil {
		s.log.Warn("stats cache invalidation failed", "err", err)
	}
}

// PendingProfiles lists profiles awaiting approval, oldest first.
func (s *Service) PendingProfiles(ctx context.Context, adminID int64, token *string, limit int) ([]db.Profile, *string, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, nil, err
	}
	return s.store.Profiles.ListPendingApproval(ctx, token, clamp(limit))
}

// PendingUnpairRequests lists open unpair requests, oldest first.
func (s *Service) PendingUnpairRequests(ctx context.Context, adminID int64, token *string, limit int) ([]db.UnpairRequest, *string, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, nil, err
	}
	return s.store.Unpairs.ListPending(ctx, token, clamp(limit))
}

// Pairs lists every current pair once.
func (s *Service) Pairs(ctx context.Context, adminID int64) ([]repository.Pair, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	return s.store.Profiles.ListPairs(ctx)
}

// Broadcast sends text to every non-banned user. Per-recipient failures are
// counted, never fatal. Returns (delivered, audience size).
func (s *Service) Broadcast(ctx context.Context, adminID int64, text string) (int, int, error) {
	if err := s.authorize(adminID); err != nil {
		return 0, 0, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, 0, svcErr.Invalid("text", "must not be empty")
	}

	ids, err := s.store.Profiles.ListReachableIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	events := make([]notify.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, notify.Event{Kind: notify.KindBroadcast, Recipient: id, Text: text})
	}
	delivered := notify.Deliver(ctx, s.notifier, s.log, events...)
	s.log.Info("broadcast sent", "admin_id", adminID, "delivered", delivered, "total", len(ids))
	return delivered, len(ids), nil
}

// DirectMessage sends text to one user. Returns whether it was delivered.
func (s *Service) DirectMessage(ctx context.Context, adminID, userID int64, text string) (bool, error) {
	if err := s.authorize(adminID); err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false, svcErr.Invalid("text", "must not be empty")
	}
	if _, err := s.store.Profiles.Get(ctx, userID); err != nil {
		return false, err
	}
	ev := notify.Event{Kind: notify.KindDirect, Recipient: userID, Counterpart: adminID, Text: text}
	return notify.Deliver(ctx, s.notifier, s.log, ev) == 1, nil
}

// NotifyAdmins tells every admin about something that needs their attention,
// such as a fresh unpair request.
func (s *Service) NotifyAdmins(ctx context.Context, kind notify.Kind, about int64, text string) {
	ids := s.admins.IDs()
	events := make([]notify.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, notify.Event{Kind: kind, Recipient: id, Counterpart: about, Text: text})
	}
	notify.Deliver(ctx, s.notifier, s.log, events...)
}

func clamp(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
