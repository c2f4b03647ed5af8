// Package pairing is the matchmaking state machine. Every exported method is
// one committed transition (or a pure read) against the store; callers get
// back a Result describing what happened and who must be told.
package pairing

import (
	"log/slog"
	"time"

	"github.com/meetme/matchmaker/internal/db"
	"github.com/meetme/matchmaker/internal/metrics"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/registration"
	"github.com/meetme/matchmaker/internal/repository"
	"github.com/meetme/matchmaker/internal/selector"
)

// Outcome is the result enum of a transition.
type Outcome string

const (
	OutcomeRegistered       Outcome = "registered"
	OutcomeUpdated          Outcome = "updated"
	OutcomeApproved         Outcome = "approved"
	OutcomeRejected         Outcome = "rejected"
	OutcomeLiked            Outcome = "liked"
	OutcomeAlreadyLiked     Outcome = "already_liked"
	OutcomeMatched          Outcome = "matched"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeAlreadySkipped   Outcome = "already_skipped"
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomePaired           Outcome = "paired"
	OutcomeMatchRejected    Outcome = "match_rejected"
	OutcomeMatchExpired     Outcome = "match_expired"
	OutcomeUnpairRequested  Outcome = "unpair_requested"
	OutcomeUnpairCancelled  Outcome = "unpair_cancelled"
	OutcomeUnpairApproved   Outcome = "unpair_approved"
	OutcomeUnpairDenied     Outcome = "unpair_denied"
	OutcomeForceUnpaired    Outcome = "force_unpaired"
	OutcomeBanned           Outcome = "banned"
	OutcomeUnbanned         Outcome = "unbanned"
	OutcomeDeleted          Outcome = "deleted"
)

// Result is what a transition returns for the caller to render.
type Result struct {
	Outcome     Outcome
	Profile     *db.Profile
	Counterpart *db.Profile
	Match       *db.Match
	Request     *db.UnpairRequest

	// Events lists the notifications owed to users other than the actor.
	Events []notify.Event
}

// Options tune policy decisions of the state machine.
type Options struct {
	// BanClosesPairHistory stamps unpaired_at on the open history entry when
	// one side of a pair is banned.
	BanClosesPairHistory bool

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Engine applies pairing transitions.
type Engine struct {
	store    *repository.Store
	selector *selector.Selector
	limits   registration.Limits
	opts     Options
	log      *slog.Logger
}

// New creates an Engine.
func New(
	store *repository.Store,
	sel *selector.Selector,
	limits registration.Limits,
	opts Options,
	log *slog.Logger,
) *Engine {
	if opts.Now == nil {
		// pagination cursors carry milliseconds
		opts.Now = func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:    store,
		selector: sel,
		limits:   limits,
		opts:     opts,
		log:      log.With("module", "pairing"),
	}
}

// Store exposes the underlying store to read-side collaborators.
func (e *Engine) Store() *repository.Store { return e.store }

func (e *Engine) now() time.Time { return e.opts.Now() }

func (e *Engine) count(kinds ...string) {
	for _, k := range kinds {
		metrics.Transitions.WithLabelValues(k).Inc()
	}
}

func event(kind notify.Kind, to, about int64) notify.Event {
	return notify.Event{Kind: kind, Recipient: to, Counterpart: about}
}

func ptr[T any](v T) *T { return &v }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
