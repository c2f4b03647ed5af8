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

// UnpairRepository provides data access for unpair requests.
type UnpairRepository struct {
	db *gorm.DB
}

// NewUnpairRepository creates a new repository bound to the given DB connection.
func NewUnpairRepository(database *gorm.DB) *UnpairRepository {
	return &UnpairRepository{db: database}
}

// Create inserts a pending request.
func (r *UnpairRepository) Create(ctx context.Context, req *db.UnpairRequest) error {
	req.Status = db.UnpairPending
	return r.db.WithContext(ctx).Create(req).Error
}

// PendingByRequester returns the requester's open request, if any.
func (r *UnpairRepository) PendingByRequester(ctx context.Context, requesterID int64) (*db.UnpairRequest, error) {
	var req db.UnpairRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", requesterID, db.UnpairPending).
		Order("id DESC").
		Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetPendingForUpdate loads a pending request by id and locks it.
// Resolved or missing requests return ErrNotFound.
func (r *UnpairRepository) GetPendingForUpdate(ctx context.Context, id uint64) (*db.UnpairRequest, error) {
	var req db.UnpairRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND status = ?", id, db.UnpairPending).
		Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Get loads a request by id in any status.
func (r *UnpairRepository) Get(ctx context.Context, id uint64) (*db.UnpairRequest, error) {
	var req db.UnpairRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Resolve closes a pending request with the given status.
// Returns false when the request was no longer pending.
func (r *UnpairRepository) Resolve(
	ctx context.Context,
	id uint64,
	status db.UnpairStatus,
	comment *string,
	now time.Time,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.UnpairRequest{}).
		Where("id = ? AND status = ?", id, db.UnpairPending).
		Updates(map[string]any{
			"status":        status,
			"admin_comment": comment,
			"resolved_at":   now,
		})
	return res.RowsAffected > 0, res.Error
}

// ForceResolveInvolving closes every pending request in which the user is
// requester or partner.
func (r *UnpairRepository) ForceResolveInvolving(ctx context.Context, userID int64, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.UnpairRequest{}).
		Where("(requester_id = ? OR partner_id = ?) AND status = ?", userID, userID, db.UnpairPending).
		Updates(map[string]any{
			"status":      db.UnpairForceResolved,
			"resolved_at": now,
		})
	return res.RowsAffected, res.Error
}

// ListStale returns pending requests created before cutoff, oldest first.
func (r *UnpairRepository) ListStale(ctx context.Context, cutoff time.Time) ([]db.UnpairRequest, error) {
	var reqs []db.UnpairRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", db.UnpairPending, cutoff).
		Order("created_at ASC, id ASC").
		Find(&reqs).Error
	return reqs, err
}

// ListPending returns pending requests oldest first, with cursor pagination.
// Ids are autoincrementing so the id alone is a stable cursor.
func (r *UnpairRepository) ListPending(
	ctx context.Context,
	paginationToken *string,
	limit int,
) ([]db.UnpairRequest, *string, error) {
	cursor, err := pagination.Decode(paginationToken)
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("status = ?", db.UnpairPending).
		Order("id ASC").
		Limit(limit + 1)
	if cursor.ID > 0 {
		query = query.Where("id > ?", cursor.ID)
	}

	var reqs []db.UnpairRequest
	if err := query.Find(&reqs).Error; err != nil {
		return nil, nil, err
	}

	reqs, next := pagination.Trim(reqs, limit, func(r db.UnpairRequest) pagination.Cursor {
		return pagination.Cursor{ID: int64(r.ID), CreatedUnix: r.CreatedAt.UnixMilli()}
	})
	return reqs, next, nil
}

// DeleteForUser purges every request touching the user.
func (r *UnpairRepository) DeleteForUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("requester_id = ? OR partner_id = ?", userID, userID).
		Delete(&db.UnpairRequest{}).Error
}
