package db

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedFirstNames = []string{"Anna", "Ben", "Carla", "Dmitri", "Eva", "Felix", "Gita", "Hugo", "Iris", "Jonas"}
	seedCourses    = []string{"Computer Science", "Law", "Medicine", "Economics", "Design"}
	seedInterests  = []string{"chess", "hiking", "coding", "music", "coffee", "films", "running", "travel"}
)

// SeedDemoData resets the database and populates it with demo profiles.
//
// Behavior:
//  1. Clears every matchmaking table.
//  2. Creates n approved, searching profiles with alternating gender and
//     ages spread over 18-30. User ids start at 1001.
//  3. Adds one-sided likes so a few mutual matches form as soon as the
//     other side likes back.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedDemoData(db *gorm.DB, n int, r *rand.Rand, log *slog.Logger) error {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = slog.Default()
	}

	// --- Fresh start ---
	for _, m := range Models() {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", m, err)
		}
	}
	log.Info("cleared existing data")

	now := time.Now().UTC().Truncate(time.Millisecond)
	profiles := make([]Profile, 0, n)
	for i := 0; i < n; i++ {
		gender := GenderMale
		if i%2 == 1 {
			gender = GenderFemale
		}
		profiles = append(profiles, Profile{
			UserID:          int64(1001 + i),
			Username:        fmt.Sprintf("demo%d", i+1),
			FirstName:       seedFirstNames[i%len(seedFirstNames)],
			LastName:        "Demo",
			Age:             18 + r.Intn(13),
			Gender:          gender,
			Course:          seedCourses[r.Intn(len(seedCourses))],
			Interests:       pickInterests(r, 3),
			Approval:        ApprovalApproved,
			Pairing:         PairingSearching,
			PreferredGender: GenderAny,
			PreferredAgeMin: 18,
			PreferredAgeMax: 30,
			CreatedAt:       now.Add(time.Duration(i) * time.Millisecond),
			StatusUpdatedAt: now,
		})
	}
	if len(profiles) > 0 {
		if err := db.CreateInBatches(&profiles, 100).Error; err != nil {
			return fmt.Errorf("failed to seed profiles: %w", err)
		}
	}
	log.Info("seeded profiles", "count", len(profiles))

	// --- Seed likes: every 3rd profile has liked its neighbour ---
	likes := 0
	for i := 0; i+1 < len(profiles); i += 3 {
		like := Like{FromUserID: profiles[i+1].UserID, ToUserID: profiles[i].UserID, CreatedAt: now}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
			return fmt.Errorf("failed to seed like: %w", err)
		}
		likes++
	}
	log.Info("seeded likes", "count", likes)
	return nil
}

func pickInterests(r *rand.Rand, k int) string {
	idx := r.Perm(len(seedInterests))[:k]
	out := seedInterests[idx[0]]
	for _, i := range idx[1:] {
		out += ", " + seedInterests[i]
	}
	return out
}
