package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one transactional boundary.
type Store struct {
	db *gorm.DB

	Profiles     *ProfileRepository
	Interactions *InteractionRepository
	Matches      *MatchRepository
	Unpairs      *UnpairRepository
	Stats        *StatsRepository
}

// NewStore binds every repository to the given connection.
func NewStore(database *gorm.DB) *Store {
	return &Store{
		db:           database,
		Profiles:     NewProfileRepository(database),
		Interactions: NewInteractionRepository(database),
		Matches:      NewMatchRepository(database),
		Unpairs:      NewUnpairRepository(database),
		Stats:        NewStatsRepository(database),
	}
}

// DB exposes the underlying connection (health checks).
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn against a Store bound to a single transaction.
// Any error returned by fn rolls the whole transaction back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
