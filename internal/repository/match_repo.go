package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
)

// MatchRepository provides data access for matches awaiting confirmation.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateIfAbsent inserts a pending match for the pair unless one already
// exists, then returns whichever row is stored.
//
// Behavior:
//   - (user1_id, user2_id) is unique with user1_id < user2_id.
//   - created=false means an earlier row (in any status) was found instead.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b int64, now time.Time) (*db.Match, bool, error) {
	lo, hi := db.OrderedPair(a, b)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&db.Match{User1ID: lo, User2ID: hi, Status: db.MatchPending, CreatedAt: now})
	if res.Error != nil {
		return nil, false, res.Error
	}

	var m db.Match
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", lo, hi).
		Take(&m).Error; err != nil {
		return nil, false, err
	}
	return &m, res.RowsAffected > 0, nil
}

// PendingForUser returns the most recent pending match involving the user.
// With lock=true the row is locked for the rest of the transaction.
func (r *MatchRepository) PendingForUser(ctx context.Context, userID int64, lock bool) (*db.Match, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m db.Match
	err := q.
		Where("(user1_id = ? OR user2_id = ?) AND status = ?", userID, userID, db.MatchPending).
		Order("created_at DESC, id DESC").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetConfirmed stamps the user's confirmation flag.
func (r *MatchRepository) SetConfirmed(ctx context.Context, m *db.Match, userID int64) error {
	column := "user2_confirmed"
	if m.User1ID == userID {
		column = "user1_confirmed"
		m.User1Confirmed = true
	} else {
		m.User2Confirmed = true
	}
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", m.ID).
		Update(column, true).Error
}

// MarkConfirmed closes the match as confirmed.
func (r *MatchRepository) MarkConfirmed(ctx context.Context, m *db.Match, now time.Time) error {
	m.Status = db.MatchConfirmed
	m.ConfirmedAt = &now
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{"status": db.MatchConfirmed, "confirmed_at": now}).Error
}

// MarkRejected closes the match as rejected.
func (r *MatchRepository) MarkRejected(ctx context.Context, m *db.Match) error {
	m.Status = db.MatchRejected
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", m.ID).
		Update("status", db.MatchRejected).Error
}

// Get loads a match by id.
func (r *MatchRepository) Get(ctx context.Context, id uint64) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountForPair returns how many match rows exist for the pair.
func (r *MatchRepository) CountForPair(ctx context.Context, a, b int64) (int64, error) {
	lo, hi := db.OrderedPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? AND user2_id = ?", lo, hi).
		Count(&count).Error
	return count, err
}

// DeleteForUser purges every match touching the user.
func (r *MatchRepository) DeleteForUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Delete(&db.Match{}).Error
}
