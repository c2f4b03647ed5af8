// Package selector picks the next candidate partner for a browsing user.
//
// Selection is a pure read: every exclusion (likes, skips, pair history) is
// already recorded durably, so two calls with the same store state see the
// same eligible pool and no cursor is kept between calls.
package selector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/meetme/matchmaker/internal/db"
)

// DefaultAgeDiff is the symmetric age band used before search expansion.
const DefaultAgeDiff = 1

// Selector produces at most one eligible candidate per call.
type Selector struct {
	db      *gorm.DB
	ageDiff int

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Selector. A nil rnd seeds one from the clock.
func New(database *gorm.DB, ageDiff int, rnd *rand.Rand) *Selector {
	if ageDiff < 0 {
		ageDiff = DefaultAgeDiff
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{db: database, ageDiff: ageDiff, rnd: rnd}
}

type candidateRow struct {
	UserID    int64
	Interests string
}

// Next returns the best candidate for user, or nil when the pool is empty.
//
// Behavior:
//   - Candidate is approved, searching and not banned, and is not the user.
//   - Users the querying user already liked or skipped are excluded.
//   - Anyone sharing a pair history entry with the user (open or closed) is excluded.
//   - Gender: the stated preference, or the opposite gender when it is "any".
//   - Age: ±ageDiff around the user's age, or the stored preferred range when expanded.
//   - Among the survivors, the highest shared-interest score wins; ties are
//     broken uniformly at random.
func (s *Selector) Next(ctx context.Context, user *db.Profile, expanded bool) (*db.Profile, error) {
	ageMin, ageMax := user.Age-s.ageDiff, user.Age+s.ageDiff
	if expanded {
		ageMin, ageMax = user.PreferredAgeMin, user.PreferredAgeMax
	}

	liked := s.db.Model(&db.Like{}).Select("to_user_id").Where("from_user_id = ?", user.UserID)
	skipped := s.db.Model(&db.Skip{}).Select("to_user_id").Where("from_user_id = ?", user.UserID)
	pairedAsFirst := s.db.Model(&db.PairHistory{}).Select("user2_id").Where("user1_id = ?", user.UserID)
	pairedAsSecond := s.db.Model(&db.PairHistory{}).Select("user1_id").Where("user2_id = ?", user.UserID)

	var rows []candidateRow
	err := s.db.WithContext(ctx).
		Model(&db.Profile{}).
		Select("user_id", "interests").
		Where("user_id <> ?", user.UserID).
		Where("approval = ? AND pairing = ? AND banned = ?", db.ApprovalApproved, db.PairingSearching, false).
		Where("user_id NOT IN (?)", liked).
		Where("user_id NOT IN (?)", skipped).
		Where("user_id NOT IN (?)", pairedAsFirst).
		Where("user_id NOT IN (?)", pairedAsSecond).
		Where("gender = ?", TargetGender(user)).
		Where("age >= ? AND age <= ?", ageMin, ageMax).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	id := s.pick(rows, InterestTokens(user.Interests))

	var candidate db.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", id).Take(&candidate).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}

// pick returns the id of a top-scoring row, uniformly among ties.
func (s *Selector) pick(rows []candidateRow, tokens []string) int64 {
	best := -1
	var top []int64
	for _, row := range rows {
		score := Score(row.Interests, tokens)
		switch {
		case score > best:
			best = score
			top = append(top[:0], row.UserID)
		case score == best:
			top = append(top, row.UserID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return top[s.rnd.Intn(len(top))]
}

// TargetGender is the gender the user is shown.
func TargetGender(user *db.Profile) string {
	if user.PreferredGender != "" && user.PreferredGender != db.GenderAny {
		return user.PreferredGender
	}
	if user.Gender == db.GenderFemale {
		return db.GenderMale
	}
	return db.GenderFemale
}
