package pairing

import (
	"context"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/repository"
)

// NextCandidate returns the next profile to show the user.
//
// The nearby age band is tried first. When it is exhausted and the user's
// search is not yet expanded, the flag is persisted and the preferred range
// is tried. ErrNotFound means the pool is exhausted.
func (e *Engine) NextCandidate(ctx context.Context, userID int64) (*db.Profile, error) {
	p, err := e.store.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := canBrowse(p); err != nil {
		return nil, err
	}

	c, err := e.selector.Next(ctx, p, p.SearchExpanded)
	if err != nil || c != nil {
		return c, err
	}
	if p.SearchExpanded {
		return nil, svcErr.ErrNotFound
	}

	if err := e.store.Profiles.SetSearchExpanded(ctx, userID, true); err != nil {
		return nil, err
	}
	e.count("search_expanded")
	e.log.Debug("search expanded", "user_id", userID)

	p.SearchExpanded = true
	c, err = e.selector.Next(ctx, p, true)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, svcErr.ErrNotFound
	}
	return c, nil
}

func canBrowse(p *db.Profile) error {
	if p.Banned {
		return svcErr.ErrBanned
	}
	if p.Approval != db.ApprovalApproved || p.Pairing != db.PairingSearching {
		return svcErr.ErrInvalidState
	}
	return nil
}

// Like records from → to and, when the like closes a mutual pair, opens a
// match and moves both users to matched_pending in the same transaction.
//
// Behavior:
//   - A duplicate like is a no-op (OutcomeAlreadyLiked) and never reopens a match.
//   - A match is only opened while both users are approved and searching.
//   - Both profiles are locked in id order first, so concurrent likes forming
//     the same pair serialise and exactly one of them sees the mutual edge.
func (e *Engine) Like(ctx context.Context, from, to int64) (*Result, error) {
	if from == to {
		return nil, svcErr.Invalid("to_user_id", "cannot like yourself")
	}

	res := &Result{}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, target, err := tx.Profiles.LockPair(ctx, from, to)
		if err != nil {
			return err
		}
		if err := canBrowse(me); err != nil {
			return err
		}
		if target.Banned {
			return svcErr.ErrNotFound
		}
		res.Profile, res.Counterpart = me, target

		now := e.now()
		inserted, err := tx.Interactions.AddLike(ctx, from, to, now)
		if err != nil {
			return err
		}
		if !inserted {
			res.Outcome = OutcomeAlreadyLiked
			return nil
		}
		res.Outcome = OutcomeLiked

		if target.Approval != db.ApprovalApproved || target.Pairing != db.PairingSearching {
			return nil
		}
		mutual, err := tx.Interactions.HasLiked(ctx, to, from)
		if err != nil || !mutual {
			return err
		}

		m, created, err := tx.Matches.CreateIfAbsent(ctx, from, to, now)
		if err != nil {
			return err
		}
		if !created || m.Status != db.MatchPending {
			return nil
		}
		if err := tx.Profiles.SetPairingStatus(ctx, []int64{from, to}, db.PairingMatchedPending, now); err != nil {
			return err
		}
		res.Outcome = OutcomeMatched
		res.Match = m
		me.Pairing, target.Pairing = db.PairingMatchedPending, db.PairingMatchedPending
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.count("like")
	if res.Outcome == OutcomeMatched {
		e.count("mutual_like")
		res.Events = []notify.Event{event(notify.KindMatchFound, to, from)}
		e.log.Debug("match opened", "match_id", res.Match.ID, "user1_id", res.Match.User1ID, "user2_id", res.Match.User2ID)
	}
	return res, nil
}

// Skip records that from passed on to. Duplicates are a no-op. An unknown or
// banned target is ErrNotFound and leaves nothing behind.
func (e *Engine) Skip(ctx context.Context, from, to int64) (*Result, error) {
	if from == to {
		return nil, svcErr.Invalid("to_user_id", "cannot skip yourself")
	}

	res := &Result{Outcome: OutcomeSkipped}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, target, err := tx.Profiles.LockPair(ctx, from, to)
		if err != nil {
			return err
		}
		if me.Banned {
			return svcErr.ErrBanned
		}
		if target.Banned {
			return svcErr.ErrNotFound
		}
		res.Profile, res.Counterpart = me, target

		inserted, err := tx.Interactions.AddSkip(ctx, from, to, e.now())
		if err != nil {
			return err
		}
		if !inserted {
			res.Outcome = OutcomeAlreadySkipped
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
