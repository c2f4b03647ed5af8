package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meetme/matchmaker/internal/db"
)

// InteractionRepository is the interaction log: likes, skips and pair history.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new repository bound to the given DB connection.
func NewInteractionRepository(database *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// AddLike records from → to.
//
// Behavior:
//   - (from_user_id, to_user_id) is unique; a duplicate is a no-op.
//   - Returns inserted=false when the like already existed.
//
// Example:
//
//	repo.AddLike(ctx, 20, 31, now) // user 20 liked user 31
func (r *InteractionRepository) AddLike(ctx context.Context, from, to int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
			DoNothing: true,
		}).
		Create(&db.Like{FromUserID: from, ToUserID: to, CreatedAt: now})
	return res.RowsAffected > 0, res.Error
}

// HasLiked checks whether from has liked to.
func (r *InteractionRepository) HasLiked(ctx context.Context, from, to int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_user_id = ? AND to_user_id = ?", from, to).
		Count(&count).Error
	return count > 0, err
}

// AddSkip records from → to as skipped. Duplicates are a no-op.
func (r *InteractionRepository) AddSkip(ctx context.Context, from, to int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
			DoNothing: true,
		}).
		Create(&db.Skip{FromUserID: from, ToUserID: to, CreatedAt: now})
	return res.RowsAffected > 0, res.Error
}

// HasSkipped checks whether from has skipped to.
func (r *InteractionRepository) HasSkipped(ctx context.Context, from, to int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Skip{}).
		Where("from_user_id = ? AND to_user_id = ?", from, to).
		Count(&count).Error
	return count > 0, err
}

// OpenHistory appends an open pair history entry for a and b.
func (r *InteractionRepository) OpenHistory(ctx context.Context, a, b int64, now time.Time) (*db.PairHistory, error) {
	lo, hi := db.OrderedPair(a, b)
	h := &db.PairHistory{User1ID: lo, User2ID: hi, PairedAt: now}
	if err := r.db.WithContext(ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// CloseHistory stamps unpaired_at on the open entry for a and b.
// Returns the number of entries closed (0 when none was open).
func (r *InteractionRepository) CloseHistory(ctx context.Context, a, b int64, now time.Time) (int64, error) {
	lo, hi := db.OrderedPair(a, b)
	res := r.db.WithContext(ctx).
		Model(&db.PairHistory{}).
		Where("user1_id = ? AND user2_id = ? AND unpaired_at IS NULL", lo, hi).
		Update("unpaired_at", now)
	return res.RowsAffected, res.Error
}

// History returns every history entry of the pair, oldest first.
func (r *InteractionRepository) History(ctx context.Context, a, b int64) ([]db.PairHistory, error) {
	lo, hi := db.OrderedPair(a, b)
	var entries []db.PairHistory
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", lo, hi).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// PurgeUser deletes every like and skip touching the user.
func (r *InteractionRepository) PurgeUser(ctx context.Context, userID int64) error {
	q := r.db.WithContext(ctx)
	if err := q.Where("from_user_id = ? OR to_user_id = ?", userID, userID).Delete(&db.Like{}).Error; err != nil {
		return err
	}
	return q.Where("from_user_id = ? OR to_user_id = ?", userID, userID).Delete(&db.Skip{}).Error
}
