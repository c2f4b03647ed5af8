package pairing

import (
	"context"
	"errors"
	"time"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/repository"
)

// lockOpenMatch locks the user and the other side of its open match in id
// order, then re-reads the match under lock. A match that changed in between
// is reported as ErrInvalidState so the caller can retry.
func lockOpenMatch(ctx context.Context, tx *repository.Store, userID int64) (*db.Profile, *db.Profile, *db.Match, error) {
	peek, err := tx.Matches.PendingForUser(ctx, userID, false)
	if err != nil {
		return nil, nil, nil, err
	}
	me, other, err := tx.Profiles.LockPair(ctx, userID, peek.Other(userID))
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := tx.Matches.PendingForUser(ctx, userID, true)
	if err != nil {
		return nil, nil, nil, err
	}
	if m.ID != peek.ID {
		return nil, nil, nil, svcErr.ErrInvalidState
	}
	return me, other, m, nil
}

// Confirm records the user's confirmation of its open match. When the other
// side already confirmed, both users become paired with each other and a pair
// history entry is opened.
func (e *Engine) Confirm(ctx context.Context, userID int64) (*Result, error) {
	res := &Result{}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, other, m, err := lockOpenMatch(ctx, tx, userID)
		if err != nil {
			return err
		}
		if me.Pairing != db.PairingMatchedPending {
			return svcErr.ErrInvalidState
		}
		res.Profile, res.Counterpart, res.Match = me, other, m

		if m.ConfirmedBy(userID) {
			res.Outcome = OutcomeAlreadyConfirmed
			return nil
		}
		if err := tx.Matches.SetConfirmed(ctx, m, userID); err != nil {
			return err
		}
		if !m.ConfirmedBy(other.UserID) {
			res.Outcome = OutcomeConfirmed
			return nil
		}

		now := e.now()
		if err := tx.Matches.MarkConfirmed(ctx, m, now); err != nil {
			return err
		}
		if err := tx.Profiles.SetPairing(ctx, userID, db.PairingPaired, ptr(other.UserID), now); err != nil {
			return err
		}
		if err := tx.Profiles.SetPairing(ctx, other.UserID, db.PairingPaired, ptr(userID), now); err != nil {
			return err
		}
		if _, err := tx.Interactions.OpenHistory(ctx, userID, other.UserID, now); err != nil {
			return err
		}
		for _, id := range []int64{userID, other.UserID} {
			if err := tx.Profiles.SetSearchExpanded(ctx, id, false); err != nil {
				return err
			}
		}
		res.Outcome = OutcomePaired
		res.Profile, err = tx.Profiles.Get(ctx, userID)
		if err != nil {
			return err
		}
		res.Counterpart, err = tx.Profiles.Get(ctx, other.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case OutcomeConfirmed:
		e.count("confirm")
		res.Events = []notify.Event{event(notify.KindMatchConfirmedPartial, res.Counterpart.UserID, userID)}
	case OutcomePaired:
		e.count("confirm", "paired")
		res.Events = []notify.Event{event(notify.KindPaired, res.Counterpart.UserID, userID)}
		e.log.Debug("pair formed", "match_id", res.Match.ID, "user_id", userID, "partner_id", res.Counterpart.UserID)
	}
	return res, nil
}

// Reject declines the user's open match. Both sides go back to searching and
// skip each other so the pair is not offered again.
func (e *Engine) Reject(ctx context.Context, userID int64) (*Result, error) {
	res := &Result{Outcome: OutcomeMatchRejected}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, other, m, err := lockOpenMatch(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.Profile, res.Counterpart, res.Match = me, other, m
		return e.dissolveMatch(ctx, tx, m, me, other)
	})
	if err != nil {
		return nil, err
	}

	e.count("reject")
	res.Events = []notify.Event{event(notify.KindMatchRejected, res.Counterpart.UserID, userID)}
	return res, nil
}

// ExpireMatch applies the timeout transition to a user that has sat in
// matched_pending since before cutoff. It has the same effect as Reject and
// both sides are notified.
//
// ErrNotFound means the user is no longer stale (already resolved by the
// other side, a reject, or a previous pass).
func (e *Engine) ExpireMatch(ctx context.Context, userID int64, cutoff time.Time) (*Result, error) {
	res := &Result{Outcome: OutcomeMatchExpired}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, other, m, err := lockOpenMatch(ctx, tx, userID)
		if errors.Is(err, svcErr.ErrNotFound) {
			return e.releaseOrphan(ctx, tx, userID, cutoff, res)
		}
		if err != nil {
			return err
		}
		if !isStale(me, cutoff) {
			return svcErr.ErrNotFound
		}
		res.Profile, res.Counterpart, res.Match = me, other, m
		return e.dissolveMatch(ctx, tx, m, me, other)
	})
	if err != nil {
		return nil, err
	}

	e.count("expire")
	res.Events = []notify.Event{event(notify.KindMatchExpired, userID, 0)}
	if res.Counterpart != nil {
		res.Events = []notify.Event{
			event(notify.KindMatchExpired, userID, res.Counterpart.UserID),
			event(notify.KindMatchExpired, res.Counterpart.UserID, userID),
		}
	}
	return res, nil
}

// releaseOrphan returns a stale matched_pending user with no open match to
// the pool.
func (e *Engine) releaseOrphan(ctx context.Context, tx *repository.Store, userID int64, cutoff time.Time, res *Result) error {
	me, err := tx.Profiles.GetForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if !isStale(me, cutoff) {
		return svcErr.ErrNotFound
	}
	e.log.Warn("matched_pending user without open match", "user_id", userID)
	res.Profile = me
	return tx.Profiles.SetPairing(ctx, userID, db.PairingSearching, nil, e.now())
}

func isStale(p *db.Profile, cutoff time.Time) bool {
	return p.Pairing == db.PairingMatchedPending && p.StatusUpdatedAt.Before(cutoff)
}

// dissolveMatch closes m as rejected, returns both sides still waiting on it
// to searching and writes the mutual skip.
func (e *Engine) dissolveMatch(ctx context.Context, tx *repository.Store, m *db.Match, a, b *db.Profile) error {
	now := e.now()
	if err := tx.Matches.MarkRejected(ctx, m); err != nil {
		return err
	}
	for _, p := range []*db.Profile{a, b} {
		if p.Pairing != db.PairingMatchedPending {
			continue
		}
		if err := tx.Profiles.SetPairing(ctx, p.UserID, db.PairingSearching, nil, now); err != nil {
			return err
		}
		p.Pairing = db.PairingSearching
	}
	if _, err := tx.Interactions.AddSkip(ctx, a.UserID, b.UserID, now); err != nil {
		return err
	}
	_, err := tx.Interactions.AddSkip(ctx, b.UserID, a.UserID, now)
	return err
}
