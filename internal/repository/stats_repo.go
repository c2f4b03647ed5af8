package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/meetme/matchmaker/internal/db"
)

// Stats is the admin dashboard snapshot.
type Stats struct {
	TotalUsers       int64            `json:"total_users"`
	Banned           int64            `json:"banned"`
	Approval         map[string]int64 `json:"approval"`
	Pairing          map[string]int64 `json:"pairing"`
	ConfirmedMatches int64            `json:"confirmed_matches"`
	PairHistory      int64            `json:"pair_history"`
	PendingUnpairs   int64            `json:"pending_unpairs"`
	TotalLikes       int64            `json:"total_likes"`
	TotalSkips       int64            `json:"total_skips"`
}

// StatsRepository aggregates counters across all tables.
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new repository bound to the given DB connection.
func NewStatsRepository(database *gorm.DB) *StatsRepository {
	return &StatsRepository{db: database}
}

type statusCount struct {
	Status string
	Count  int64
}

// Collect computes the snapshot.
//
// Behavior:
//   - Approval counts exclude banned users.
//   - Pairing counts only cover approved, non-banned users.
func (r *StatsRepository) Collect(ctx context.Context) (*Stats, error) {
	q := r.db.WithContext(ctx)
	s := &Stats{
		Approval: map[string]int64{},
		Pairing:  map[string]int64{},
	}

	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&s.TotalUsers, &db.Profile{}, nil},
		{&s.Banned, &db.Profile{}, []any{"banned = ?", true}},
		{&s.ConfirmedMatches, &db.Match{}, []any{"status = ?", db.MatchConfirmed}},
		{&s.PairHistory, &db.PairHistory{}, nil},
		{&s.PendingUnpairs, &db.UnpairRequest{}, []any{"status = ?", db.UnpairPending}},
		{&s.TotalLikes, &db.Like{}, nil},
		{&s.TotalSkips, &db.Skip{}, nil},
	}
	for _, c := range counts {
		stmt := q.Model(c.model)
		if c.where != nil {
			stmt = stmt.Where(c.where[0], c.where[1:]...)
		}
		if err := stmt.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var rows []statusCount
	if err := q.Model(&db.Profile{}).
		Select("approval AS status, COUNT(*) AS count").
		Where("banned = ?", false).
		Group("approval").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.Approval[row.Status] = row.Count
	}

	rows = nil
	if err := q.Model(&db.Profile{}).
		Select("pairing AS status, COUNT(*) AS count").
		Where("approval = ? AND banned = ?", db.ApprovalApproved, false).
		Group("pairing").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.Pairing[row.Status] = row.Count
	}

	return s, nil
}
