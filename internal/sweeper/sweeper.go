// Package sweeper periodically resolves pending states that nobody acted on:
// matches left unconfirmed and unpair requests left unanswered.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/metrics"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/pairing"
)

// Config holds the sweeper timings. Zero values fall back to the defaults.
type Config struct {
	Interval           time.Duration
	PendingPairTimeout time.Duration
	RejectionTimeout   time.Duration
}

const (
	DefaultInterval           = time.Hour
	DefaultPendingPairTimeout = 48 * time.Hour
	DefaultRejectionTimeout   = 72 * time.Hour
)

// Report summarises one pass.
type Report struct {
	MatchesExpired      int
	UnpairsAutoApproved int
	Errors              int
}

// Sweeper applies timeout transitions through the pairing engine.
type Sweeper struct {
	engine   *pairing.Engine
	notifier notify.Notifier
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Sweeper. A nil now uses the wall clock.
func New(engine *pairing.Engine, n notify.Notifier, cfg Config, log *slog.Logger, now func() time.Time) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PendingPairTimeout <= 0 {
		cfg.PendingPairTimeout = DefaultPendingPairTimeout
	}
	if cfg.RejectionTimeout <= 0 {
		cfg.RejectionTimeout = DefaultRejectionTimeout
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{engine: engine, notifier: n, cfg: cfg, log: log.With("module", "sweeper"), now: now}
}

// Run sweeps every interval until ctx is cancelled. A record's transition is
// the smallest unit of work, so cancellation never leaves one half-applied.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info("sweeper started", "interval", s.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass. Each record is processed independently;
// a failure is logged and counted and the pass moves on.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	var rep Report
	s.expireMatches(ctx, &rep)
	s.approveStaleUnpairs(ctx, &rep)

	if rep.MatchesExpired+rep.UnpairsAutoApproved+rep.Errors > 0 {
		s.log.Info("sweep finished",
			"matches_expired", rep.MatchesExpired,
			"unpairs_auto_approved", rep.UnpairsAutoApproved,
			"errors", rep.Errors,
		)
	}
	return rep
}

func (s *Sweeper) expireMatches(ctx context.Context, rep *Report) {
	cutoff := s.now().Add(-s.cfg.PendingPairTimeout)
	stale, err := s.engine.Store().Profiles.ListStaleMatchedPending(ctx, cutoff)
	if err != nil {
		s.fail(rep, "list stale matches", err)
		return
	}

	for _, p := range stale {
		if ctx.Err() != nil {
			return
		}
		res, err := s.engine.ExpireMatch(ctx, p.UserID, cutoff)
		if errors.Is(err, svcErr.ErrNotFound) {
			// resolved together with its counterpart earlier in this pass
			continue
		}
		if err != nil {
			s.fail(rep, "expire match", err, "user_id", p.UserID)
			continue
		}
		rep.MatchesExpired++
		metrics.SweepResolved.WithLabelValues("match_expired").Inc()
		notify.Deliver(ctx, s.notifier, s.log, res.Events...)
	}
}

func (s *Sweeper) approveStaleUnpairs(ctx context.Context, rep *Report) {
	cutoff := s.now().Add(-s.cfg.RejectionTimeout)
	stale, err := s.engine.Store().Unpairs.ListStale(ctx, cutoff)
	if err != nil {
		s.fail(rep, "list stale unpair requests", err)
		return
	}

	for _, req := range stale {
		if ctx.Err() != nil {
			return
		}
		res, err := s.engine.AutoApproveUnpair(ctx, req.ID)
		if errors.Is(err, svcErr.ErrNotFound) {
			continue
		}
		if err != nil {
			s.fail(rep, "auto-approve unpair", err, "request_id", req.ID)
			continue
		}
		rep.UnpairsAutoApproved++
		metrics.SweepResolved.WithLabelValues("unpair_auto_approved").Inc()
		notify.Deliver(ctx, s.notifier, s.log, res.Events...)
	}
}

func (s *Sweeper) fail(rep *Report, what string, err error, args ...any) {
	rep.Errors++
	metrics.SweepErrors.Inc()
	s.log.Error(what+" failed", append(args, "err", err)...)
}
