package pairing

import (
	"context"
	"errors"
	"strings"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/repository"
)

const counterpartLockAttempts = 3

// counterpartID is the user whose state is tied to p: the partner of a pair,
// or the other side of an open match. Zero when there is none.
func counterpartID(ctx context.Context, tx *repository.Store, p *db.Profile) (int64, error) {
	switch {
	case inPair(p) && p.PartnerID != nil:
		return *p.PartnerID, nil
	case p.Pairing == db.PairingMatchedPending:
		m, err := tx.Matches.PendingForUser(ctx, p.UserID, false)
		if errors.Is(err, svcErr.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return m.Other(p.UserID), nil
	}
	return 0, nil
}

// lockWithCounterpart locks the user and, when it has one, its counterpart.
// The counterpart is derived again after locking; if it moved in between the
// whole thing is retried.
func lockWithCounterpart(ctx context.Context, tx *repository.Store, userID int64) (*db.Profile, *db.Profile, error) {
	for range counterpartLockAttempts {
		peek, err := tx.Profiles.Get(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		otherID, err := counterpartID(ctx, tx, peek)
		if err != nil {
			return nil, nil, err
		}

		var me, other *db.Profile
		if otherID == 0 {
			me, err = tx.Profiles.GetForUpdate(ctx, userID)
		} else {
			me, other, err = tx.Profiles.LockPair(ctx, userID, otherID)
			if errors.Is(err, svcErr.ErrNotFound) {
				// dangling link, lock the user alone
				other = nil
				me, err = tx.Profiles.GetForUpdate(ctx, userID)
				otherID = 0
			}
		}
		if err != nil {
			return nil, nil, err
		}

		again, err := counterpartID(ctx, tx, me)
		if err != nil {
			return nil, nil, err
		}
		if again == otherID {
			return me, other, nil
		}
	}
	return nil, nil, svcErr.ErrInvalidState
}

// Ban bans the user and releases whoever was tied to it.
//
// Behavior:
//   - The banned user becomes inactive with no partner.
//   - A partner (or open match counterpart) returns to searching.
//   - An open match is rejected.
//   - The open history entry of a pair is closed when BanClosesPairHistory is set.
//   - Every pending unpair request involving the user is force_resolved.
func (e *Engine) Ban(ctx context.Context, userID int64, reason string) (*Result, error) {
	reason = strings.TrimSpace(reason)
	res := &Result{Outcome: OutcomeBanned}

	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, other, err := lockWithCounterpart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if me.Banned {
			return svcErr.ErrBanned
		}

		now := e.now()
		if other != nil {
			if err := e.releaseCounterpart(ctx, tx, me, other, e.opts.BanClosesPairHistory); err != nil {
				return err
			}
			res.Counterpart = other
			res.Events = append(res.Events, event(notify.KindPartnerLeft, other.UserID, userID))
		}
		if _, err := tx.Unpairs.ForceResolveInvolving(ctx, userID, now); err != nil {
			return err
		}
		if err := tx.Profiles.SetBanned(ctx, userID, reason, now); err != nil {
			return err
		}
		res.Profile, err = tx.Profiles.Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.count("ban")
	res.Events = append(res.Events, notify.Event{Kind: notify.KindBanned, Recipient: userID, Text: reason})
	e.log.Debug("user banned", "user_id", userID, "history_closed", e.opts.BanClosesPairHistory)
	return res, nil
}

// releaseCounterpart frees other from me: an open match is rejected, a pair
// is broken, and other returns to searching.
func (e *Engine) releaseCounterpart(ctx context.Context, tx *repository.Store, me, other *db.Profile, closeHistory bool) error {
	now := e.now()
	if me.Pairing == db.PairingMatchedPending {
		m, err := tx.Matches.PendingForUser(ctx, me.UserID, true)
		if err == nil {
			err = tx.Matches.MarkRejected(ctx, m)
		}
		if err != nil && !errors.Is(err, svcErr.ErrNotFound) {
			return err
		}
	} else if closeHistory {
		if _, err := tx.Interactions.CloseHistory(ctx, me.UserID, other.UserID, now); err != nil {
			return err
		}
	}

	if err := tx.Profiles.SetPairing(ctx, other.UserID, db.PairingSearching, nil, now); err != nil {
		return err
	}
	other.Pairing, other.PartnerID = db.PairingSearching, nil
	return nil
}

// Unban lifts a ban. The user goes back to the approval queue and stays
// inactive until approved again.
func (e *Engine) Unban(ctx context.Context, userID int64) (*Result, error) {
	res := &Result{Outcome: OutcomeUnbanned}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, err := tx.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !me.Banned {
			return svcErr.ErrInvalidState
		}
		if _, err := tx.Profiles.ClearBan(ctx, userID, e.now()); err != nil {
			return err
		}
		res.Profile, err = tx.Profiles.Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.count("unban")
	res.Events = []notify.Event{event(notify.KindUnbanned, userID, 0)}
	return res, nil
}

// DeleteAccount removes the user. The counterpart returns to searching, an
// open pair history entry is closed and every like, skip, match and request
// touching the user is purged. History rows are kept.
func (e *Engine) DeleteAccount(ctx context.Context, userID int64) (*Result, error) {
	res := &Result{Outcome: OutcomeDeleted}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, other, err := lockWithCounterpart(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.Profile = me

		if other != nil {
			if err := e.releaseCounterpart(ctx, tx, me, other, true); err != nil {
				return err
			}
			res.Counterpart = other
			res.Events = []notify.Event{event(notify.KindPartnerLeft, other.UserID, userID)}
		}

		if err := tx.Interactions.PurgeUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.Matches.DeleteForUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.Unpairs.DeleteForUser(ctx, userID); err != nil {
			return err
		}
		return tx.Profiles.Delete(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	e.count("delete")
	e.log.Debug("account deleted", "user_id", userID)
	return res, nil
}
