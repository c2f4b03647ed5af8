package pairing

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/repository"
)

const (
	minReasonLen = 10
	maxReasonLen = 500
)

// RequestUnpair files the user's request to leave its pair. The requester
// moves to unpair_pending; the partner stays paired until an admin (or the
// sweeper) decides.
func (e *Engine) RequestUnpair(ctx context.Context, userID int64, reason string) (*Result, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < minReasonLen || n > maxReasonLen {
		return nil, svcErr.Invalid("reason", "must be 10-500 characters")
	}

	peek, err := e.store.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if peek.PartnerID == nil {
		return nil, pairedStateErr(peek)
	}

	res := &Result{Outcome: OutcomeUnpairRequested}
	err = e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, partner, err := tx.Profiles.LockPair(ctx, userID, *peek.PartnerID)
		if err != nil {
			return err
		}
		if me.Pairing != db.PairingPaired || !linked(me, partner) {
			return pairedStateErr(me)
		}
		if _, err := tx.Unpairs.PendingByRequester(ctx, userID); err == nil {
			return svcErr.ErrAlreadyPending
		} else if !errors.Is(err, svcErr.ErrNotFound) {
			return err
		}

		now := e.now()
		req := &db.UnpairRequest{
			RequesterID: userID,
			PartnerID:   partner.UserID,
			Reason:      reason,
			CreatedAt:   now,
		}
		if err := tx.Unpairs.Create(ctx, req); err != nil {
			return err
		}
		if err := tx.Profiles.SetPairingStatus(ctx, []int64{userID}, db.PairingUnpairPending, now); err != nil {
			return err
		}
		me.Pairing = db.PairingUnpairPending
		res.Profile, res.Counterpart, res.Request = me, partner, req
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.count("unpair_request")
	return res, nil
}

func pairedStateErr(p *db.Profile) error {
	if p.Pairing == db.PairingUnpairPending {
		return svcErr.ErrAlreadyPending
	}
	return svcErr.ErrInvalidState
}

// linked reports whether a and b point at each other.
func linked(a, b *db.Profile) bool {
	return a.PartnerID != nil && *a.PartnerID == b.UserID &&
		b.PartnerID != nil && *b.PartnerID == a.UserID
}

func inPair(p *db.Profile) bool {
	return p.Pairing == db.PairingPaired || p.Pairing == db.PairingUnpairPending
}

// CancelUnpair withdraws the user's own pending request.
func (e *Engine) CancelUnpair(ctx context.Context, userID int64) (*Result, error) {
	res := &Result{Outcome: OutcomeUnpairCancelled}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, err := tx.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		req, err := tx.Unpairs.PendingByRequester(ctx, userID)
		if err != nil {
			return err
		}

		now := e.now()
		ok, err := tx.Unpairs.Resolve(ctx, req.ID, db.UnpairCancelled, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			return svcErr.ErrNotFound
		}
		if me.Pairing == db.PairingUnpairPending {
			if err := tx.Profiles.SetPairingStatus(ctx, []int64{userID}, db.PairingPaired, now); err != nil {
				return err
			}
			me.Pairing = db.PairingPaired
		}
		res.Profile, res.Request = me, req
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.count("unpair_cancel")
	return res, nil
}

// ApproveUnpair grants a pending request: both users return to searching and
// the open history entry is closed.
//
// A request whose pair was already dissolved some other way is closed as
// force_resolved and ErrNotFound is returned.
func (e *Engine) ApproveUnpair(ctx context.Context, requestID uint64, comment *string) (*Result, error) {
	return e.grantUnpair(ctx, requestID, comment, false)
}

// AutoApproveUnpair is ApproveUnpair applied by the sweeper to a stale request.
func (e *Engine) AutoApproveUnpair(ctx context.Context, requestID uint64) (*Result, error) {
	return e.grantUnpair(ctx, requestID, ptr("auto-approved after timeout"), true)
}

func (e *Engine) grantUnpair(ctx context.Context, requestID uint64, comment *string, auto bool) (*Result, error) {
	peek, err := e.store.Unpairs.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if peek.Status != db.UnpairPending {
		return nil, svcErr.ErrNotFound
	}

	res := &Result{Outcome: OutcomeUnpairApproved}
	stale := false
	err = e.store.Transaction(ctx, func(tx *repository.Store) error {
		requester, partner, err := tx.Profiles.LockPair(ctx, peek.RequesterID, peek.PartnerID)
		if err != nil {
			return err
		}
		req, err := tx.Unpairs.GetPendingForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		now := e.now()
		if !linked(requester, partner) || !inPair(requester) || !inPair(partner) {
			stale = true
			_, err := tx.Unpairs.Resolve(ctx, requestID, db.UnpairForceResolved, comment, now)
			return err
		}

		if _, err := tx.Unpairs.Resolve(ctx, requestID, db.UnpairApproved, comment, now); err != nil {
			return err
		}
		if err := e.dissolvePair(ctx, tx, requester, partner, true); err != nil {
			return err
		}
		req.Status = db.UnpairApproved
		res.Profile, res.Counterpart, res.Request = requester, partner, req
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, svcErr.ErrNotFound
	}

	kind := notify.KindUnpairApproved
	if auto {
		kind = notify.KindUnpairAutoApproved
		e.count("unpair_auto_approve")
	} else {
		e.count("unpair_approve")
	}
	res.Events = []notify.Event{
		event(kind, peek.RequesterID, peek.PartnerID),
		event(kind, peek.PartnerID, peek.RequesterID),
	}
	for i := range res.Events {
		res.Events[i].Text = deref(comment)
	}
	return res, nil
}

// DenyUnpair refuses a pending request; the requester goes back to paired.
func (e *Engine) DenyUnpair(ctx context.Context, requestID uint64, comment *string) (*Result, error) {
	peek, err := e.store.Unpairs.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	res := &Result{Outcome: OutcomeUnpairDenied}
	err = e.store.Transaction(ctx, func(tx *repository.Store) error {
		requester, err := tx.Profiles.GetForUpdate(ctx, peek.RequesterID)
		if err != nil {
			return err
		}
		req, err := tx.Unpairs.GetPendingForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		now := e.now()
		if _, err := tx.Unpairs.Resolve(ctx, requestID, db.UnpairDenied, comment, now); err != nil {
			return err
		}
		if requester.Pairing == db.PairingUnpairPending {
			if err := tx.Profiles.SetPairingStatus(ctx, []int64{requester.UserID}, db.PairingPaired, now); err != nil {
				return err
			}
			requester.Pairing = db.PairingPaired
		}
		req.Status = db.UnpairDenied
		res.Profile, res.Request = requester, req
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.count("unpair_deny")
	ev := event(notify.KindUnpairDenied, peek.RequesterID, peek.PartnerID)
	ev.Text = deref(comment)
	res.Events = []notify.Event{ev}
	return res, nil
}

// ForceUnpair dissolves the user's pair without a request. Any pending
// request of either side is closed as force_resolved.
func (e *Engine) ForceUnpair(ctx context.Context, userID int64) (*Result, error) {
	peek, err := e.store.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if peek.PartnerID == nil || !inPair(peek) {
		return nil, svcErr.ErrNotFound
	}

	res := &Result{Outcome: OutcomeForceUnpaired}
	err = e.store.Transaction(ctx, func(tx *repository.Store) error {
		me, partner, err := tx.Profiles.LockPair(ctx, userID, *peek.PartnerID)
		if err != nil {
			return err
		}
		if !linked(me, partner) || !inPair(me) {
			return svcErr.ErrNotFound
		}
		if err := e.dissolvePair(ctx, tx, me, partner, true); err != nil {
			return err
		}
		res.Profile, res.Counterpart = me, partner
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.count("force_unpair")
	partnerID := res.Counterpart.UserID
	res.Events = []notify.Event{
		event(notify.KindForceUnpaired, userID, partnerID),
		event(notify.KindForceUnpaired, partnerID, userID),
	}
	return res, nil
}

// dissolvePair sends both users back to searching, optionally closes their
// open history entry and force-resolves every request still pending for
// either of them.
func (e *Engine) dissolvePair(ctx context.Context, tx *repository.Store, a, b *db.Profile, closeHistory bool) error {
	now := e.now()
	for _, p := range []*db.Profile{a, b} {
		if err := tx.Profiles.SetPairing(ctx, p.UserID, db.PairingSearching, nil, now); err != nil {
			return err
		}
		if _, err := tx.Unpairs.ForceResolveInvolving(ctx, p.UserID, now); err != nil {
			return err
		}
		p.Pairing, p.PartnerID = db.PairingSearching, nil
	}
	if !closeHistory {
		return nil
	}
	_, err := tx.Interactions.CloseHistory(ctx, a.UserID, b.UserID, now)
	return err
}
