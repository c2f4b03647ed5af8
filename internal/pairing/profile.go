package pairing

import (
	"context"
	"errors"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/registration"
	"github.com/meetme/matchmaker/internal/repository"
)

// Register creates a profile or overwrites an existing one.
//
// Behavior:
//   - New profiles start approval=pending, pairing=inactive.
//   - Re-registration resets approval to pending and clears search expansion;
//     pairing status and partner are untouched.
//   - Banned users cannot re-register.
func (e *Engine) Register(ctx context.Context, in registration.ProfileInput) (*Result, error) {
	if err := e.limits.Validate(in); err != nil {
		return nil, err
	}

	now := e.now()
	p := &db.Profile{
		UserID:          in.UserID,
		Username:        in.Username,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Age:             in.Age,
		Gender:          in.Gender,
		Course:          in.Course,
		Interests:       in.Interests,
		AboutMe:         in.AboutMe,
		MediaFileID:     in.MediaFileID,
		MediaType:       in.MediaType,
		PreferredGender: in.PreferredGender,
		PreferredAgeMin: in.PreferredAgeMin,
		PreferredAgeMax: in.PreferredAgeMax,
	}

	res := &Result{}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Profiles.GetForUpdate(ctx, in.UserID)
		switch {
		case errors.Is(err, svcErr.ErrNotFound):
			p.Approval = db.ApprovalPending
			p.Pairing = db.PairingInactive
			p.CreatedAt = now
			p.StatusUpdatedAt = now
			if err := tx.Profiles.Create(ctx, p); err != nil {
				return err
			}
			res.Outcome = OutcomeRegistered
		case err != nil:
			return err
		case existing.Banned:
			return svcErr.ErrBanned
		default:
			if err := tx.Profiles.Overwrite(ctx, p, now); err != nil {
				return err
			}
			res.Outcome = OutcomeUpdated
		}
		res.Profile, err = tx.Profiles.Get(ctx, in.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("profile registered", "user_id", in.UserID, "outcome", res.Outcome)
	return res, nil
}

// UpdateFilters edits search preferences. Search expansion starts over.
func (e *Engine) UpdateFilters(ctx context.Context, userID int64, preferredGender string, ageMin, ageMax int) (*db.Profile, error) {
	gender, err := registration.ParsePreferredGender(preferredGender)
	if err != nil {
		return nil, err
	}
	if ageMin < e.limits.MinAge || ageMax > e.limits.MaxAge || ageMin > ageMax {
		return nil, svcErr.Invalid("preferred_age", "out of range")
	}

	ok, err := e.store.Profiles.UpdateFilters(ctx, userID, gender, ageMin, ageMax)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, svcErr.ErrNotFound
	}
	return e.store.Profiles.Get(ctx, userID)
}

// ApproveProfile admits the user to the matching pool. A dormant profile
// starts searching; a profile already in a pairing keeps its status.
func (e *Engine) ApproveProfile(ctx context.Context, userID int64) (*Result, error) {
	res := &Result{Outcome: OutcomeApproved}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if p.Banned {
			return svcErr.ErrBanned
		}

		now := e.now()
		if err := tx.Profiles.SetApproval(ctx, userID, db.ApprovalApproved, now); err != nil {
			return err
		}
		if p.Pairing == db.PairingInactive {
			if err := tx.Profiles.SetPairing(ctx, userID, db.PairingSearching, nil, now); err != nil {
				return err
			}
		}
		res.Profile, err = tx.Profiles.Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.count("approve")
	res.Events = []notify.Event{event(notify.KindProfileApproved, userID, 0)}
	return res, nil
}

// RejectProfile marks the profile rejected. Pairing status is left alone;
// the user may register again to re-enter the queue.
func (e *Engine) RejectProfile(ctx context.Context, userID int64) (*Result, error) {
	res := &Result{Outcome: OutcomeRejected}
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if p.Banned {
			return svcErr.ErrBanned
		}
		if err := tx.Profiles.SetApproval(ctx, userID, db.ApprovalRejected, e.now()); err != nil {
			return err
		}
		res.Profile, err = tx.Profiles.Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.count("reject_profile")
	res.Events = []notify.Event{event(notify.KindProfileRejected, userID, 0)}
	return res, nil
}

// StatusView is everything needed to render a user's current situation.
type StatusView struct {
	Profile *db.Profile
	// Match is the open match, if any, and Counterpart its other side.
	Match       *db.Match
	Counterpart *db.Profile
	Partner     *db.Profile
	Request     *db.UnpairRequest
}

// Status reads the user's current state. Missing optional parts are nil.
func (e *Engine) Status(ctx context.Context, userID int64) (*StatusView, error) {
	p, err := e.store.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{Profile: p}

	m, err := e.store.Matches.PendingForUser(ctx, userID, false)
	switch {
	case err == nil:
		view.Match = m
		if view.Counterpart, err = e.optionalProfile(ctx, m.Other(userID)); err != nil {
			return nil, err
		}
	case !errors.Is(err, svcErr.ErrNotFound):
		return nil, err
	}

	if p.PartnerID != nil {
		if view.Partner, err = e.optionalProfile(ctx, *p.PartnerID); err != nil {
			return nil, err
		}
	}

	req, err := e.store.Unpairs.PendingByRequester(ctx, userID)
	switch {
	case err == nil:
		view.Request = req
	case !errors.Is(err, svcErr.ErrNotFound):
		return nil, err
	}
	return view, nil
}

func (e *Engine) optionalProfile(ctx context.Context, userID int64) (*db.Profile, error) {
	p, err := e.store.Profiles.Get(ctx, userID)
	if errors.Is(err, svcErr.ErrNotFound) {
		return nil, nil
	}
	return p, err
}
