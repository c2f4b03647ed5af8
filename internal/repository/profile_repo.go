package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/utils/pagination"
)

// ProfileRepository provides data access for profiles and their status axes.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Get loads a profile. Missing rows return svcErr.ErrNotFound.
func (r *ProfileRepository) Get(ctx context.Context, userID int64) (*db.Profile, error) {
	return r.get(r.db.WithContext(ctx), userID)
}

// GetForUpdate loads a profile and row-locks it for the rest of the transaction.
func (r *ProfileRepository) GetForUpdate(ctx context.Context, userID int64) (*db.Profile, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *ProfileRepository) get(q *gorm.DB, userID int64) (*db.Profile, error) {
	var p db.Profile
	err := q.Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockPair row-locks two profiles in ascending id order, so that two
// transactions touching the same pair always acquire locks in the same order.
//
// Returns the profiles in argument order; a missing profile yields ErrNotFound.
func (r *ProfileRepository) LockPair(ctx context.Context, a, b int64) (*db.Profile, *db.Profile, error) {
	lo, hi := db.OrderedPair(a, b)
	first, err := r.GetForUpdate(ctx, lo)
	if err != nil {
		return nil, nil, err
	}
	second, err := r.GetForUpdate(ctx, hi)
	if err != nil {
		return nil, nil, err
	}
	if first.UserID == a {
		return first, second, nil
	}
	return second, first, nil
}

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Overwrite replaces the registration fields of an existing profile and puts
// it back in the approval queue. Pairing status and partner are untouched.
func (r *ProfileRepository) Overwrite(ctx context.Context, p *db.Profile, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", p.UserID).
		Updates(map[string]any{
			"username":          p.Username,
			"first_name":        p.FirstName,
			"last_name":         p.LastName,
			"age":               p.Age,
			"gender":            p.Gender,
			"course":            p.Course,
			"interests":         p.Interests,
			"about_me":          p.AboutMe,
			"media_file_id":     p.MediaFileID,
			"media_type":        p.MediaType,
			"preferred_gender":  p.PreferredGender,
			"preferred_age_min": p.PreferredAgeMin,
			"preferred_age_max": p.PreferredAgeMax,
			"approval":          db.ApprovalPending,
			"search_expanded":   false,
			"status_updated_at": now,
		}).Error
}

// UpdateFilters edits the search preferences and resets search expansion.
func (r *ProfileRepository) UpdateFilters(ctx context.Context, userID int64, gender string, ageMin, ageMax int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"preferred_gender":  gender,
			"preferred_age_min": ageMin,
			"preferred_age_max": ageMax,
			"search_expanded":   false,
		})
	return res.RowsAffected > 0, res.Error
}

// SetPairing moves the given users to status and sets (or clears, when
// partnerID is nil) their partner link.
func (r *ProfileRepository) SetPairing(
	ctx context.Context,
	userID int64,
	status db.PairingStatus,
	partnerID *int64,
	now time.Time,
) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"pairing":           status,
			"partner_id":        partnerID,
			"status_updated_at": now,
		}).Error
}

// SetPairingStatus changes only the pairing axis, keeping the partner link.
func (r *ProfileRepository) SetPairingStatus(ctx context.Context, userIDs []int64, status db.PairingStatus, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id IN ?", userIDs).
		Updates(map[string]any{
			"pairing":           status,
			"status_updated_at": now,
		}).Error
}

// SetSearchExpanded persists the search expansion flag.
func (r *ProfileRepository) SetSearchExpanded(ctx context.Context, userID int64, expanded bool) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Update("search_expanded", expanded).Error
}

// SetApproval changes the approval axis only.
func (r *ProfileRepository) SetApproval(ctx context.Context, userID int64, approval db.ApprovalStatus, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"approval":          approval,
			"status_updated_at": now,
		}).Error
}

// SetBanned marks the user banned and forces it dormant.
func (r *ProfileRepository) SetBanned(ctx context.Context, userID int64, reason string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"banned":            true,
			"ban_reason":        reason,
			"pairing":           db.PairingInactive,
			"partner_id":        nil,
			"status_updated_at": now,
		}).Error
}

// ClearBan lifts a ban and sends the user back to the approval queue.
func (r *ProfileRepository) ClearBan(ctx context.Context, userID int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ? AND banned = ?", userID, true).
		Updates(map[string]any{
			"banned":            false,
			"ban_reason":        nil,
			"approval":          db.ApprovalPending,
			"status_updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// Delete removes the profile row.
func (r *ProfileRepository) Delete(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.Profile{}).Error
}

// ListStaleMatchedPending returns users stuck in matched_pending since before cutoff.
func (r *ProfileRepository) ListStaleMatchedPending(ctx context.Context, cutoff time.Time) ([]db.Profile, error) {
	var profiles []db.Profile
	err := r.db.WithContext(ctx).
		Where("pairing = ? AND status_updated_at < ?", db.PairingMatchedPending, cutoff).
		Order("status_updated_at ASC, user_id ASC").
		Find(&profiles).Error
	return profiles, err
}

// ListPendingApproval returns non-banned profiles awaiting moderation,
// oldest first, with cursor pagination.
func (r *ProfileRepository) ListPendingApproval(
	ctx context.Context,
	paginationToken *string,
	limit int,
) ([]db.Profile, *string, error) {
	cursor, err := pagination.Decode(paginationToken)
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("approval = ? AND banned = ?", db.ApprovalPending, false).
		Order("created_at ASC, user_id ASC").
		Limit(limit + 1)

	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where("(created_at > ? OR (created_at = ? AND user_id > ?))", ts, ts, cursor.ID)
	}

	var profiles []db.Profile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, nil, err
	}

	profiles, next := pagination.Trim(profiles, limit, func(p db.Profile) pagination.Cursor {
		return pagination.Cursor{ID: p.UserID, CreatedUnix: p.CreatedAt.UnixMilli()}
	})
	return profiles, next, nil
}

// ListReachableIDs returns every non-banned user id (broadcast audience).
func (r *ProfileRepository) ListReachableIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("banned = ?", false).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Pair is a current pairing, listed once with the lower id first.
type Pair struct {
	User    db.Profile
	Partner db.Profile
}

// ListPairs returns every current pair once.
func (r *ProfileRepository) ListPairs(ctx context.Context) ([]Pair, error) {
	var left []db.Profile
	err := r.db.WithContext(ctx).
		Where("pairing IN ? AND partner_id IS NOT NULL AND user_id < partner_id",
			[]db.PairingStatus{db.PairingPaired, db.PairingUnpairPending}).
		Order("user_id ASC").
		Find(&left).Error
	if err != nil || len(left) == 0 {
		return nil, err
	}

	partnerIDs := make([]int64, 0, len(left))
	for _, p := range left {
		partnerIDs = append(partnerIDs, *p.PartnerID)
	}
	var right []db.Profile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", partnerIDs).Find(&right).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]db.Profile, len(right))
	for _, p := range right {
		byID[p.UserID] = p
	}

	pairs := make([]Pair, 0, len(left))
	for _, p := range left {
		if partner, ok := byID[*p.PartnerID]; ok {
			pairs = append(pairs, Pair{User: p, Partner: partner})
		}
	}
	return pairs, nil
}
