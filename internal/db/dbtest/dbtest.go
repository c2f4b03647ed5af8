// Package dbtest opens isolated in-memory stores for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meetme/matchmaker/internal/db"
)

// Open spins up a migrated in-memory SQLite DB private to the test.
//
// The pool is capped at one connection so concurrent transactions queue up
// behind each other the way row locks serialise them on MySQL/Postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// Profile returns an approved, searching profile with sensible defaults.
// Callers tweak the fields they care about.
func Profile(id int64, gender string, age int) db.Profile {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return db.Profile{
		UserID:          id,
		Username:        fmt.Sprintf("user%d", id),
		FirstName:       fmt.Sprintf("First%d", id),
		LastName:        "Test",
		Age:             age,
		Gender:          gender,
		Approval:        db.ApprovalApproved,
		Pairing:         db.PairingSearching,
		PreferredGender: db.GenderAny,
		PreferredAgeMin: 16,
		PreferredAgeMax: 100,
		CreatedAt:       now,
		StatusUpdatedAt: now,
	}
}

// Seed inserts the given profiles.
func Seed(t *testing.T, database *gorm.DB, profiles ...db.Profile) {
	t.Helper()
	for i := range profiles {
		require.NoError(t, database.Create(&profiles[i]).Error)
	}
}

// Reload fetches a profile straight from the store.
func Reload(t *testing.T, database *gorm.DB, id int64) db.Profile {
	t.Helper()
	var p db.Profile
	require.NoError(t, database.First(&p, "user_id = ?", id).Error)
	return p
}
