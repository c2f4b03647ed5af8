package selector_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/meetme/matchmaker/internal/db"
	"github.com/meetme/matchmaker/internal/db/dbtest"
	"github.com/meetme/matchmaker/internal/selector"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setup seeds user 20 (male, 22, "chess, coding, coffee") and returns a
// selector with a fixed random source.
func setup(t *testing.T, others ...db.Profile) (*gorm.DB, *selector.Selector, *db.Profile) {
	t.Helper()
	database := dbtest.Open(t)

	me := dbtest.Profile(20, db.GenderMale, 22)
	me.Interests = "chess, coding, coffee"
	me.PreferredAgeMin = 18
	me.PreferredAgeMax = 30
	dbtest.Seed(t, database, me)
	dbtest.Seed(t, database, others...)

	return database, selector.New(database, selector.DefaultAgeDiff, rand.New(rand.NewSource(1))), &me
}

func TestNextAppliesBaseFilters(t *testing.T) {
	ctx := context.Background()

	pendingApproval := dbtest.Profile(32, db.GenderFemale, 22)
	pendingApproval.Approval = db.ApprovalPending
	paired := dbtest.Profile(33, db.GenderFemale, 22)
	paired.Pairing = db.PairingPaired
	banned := dbtest.Profile(34, db.GenderFemale, 22)
	banned.Banned = true
	sameGender := dbtest.Profile(35, db.GenderMale, 22)
	tooOld := dbtest.Profile(36, db.GenderFemale, 24)

	_, sel, me := setup(t, pendingApproval, paired, banned, sameGender, tooOld)

	got, err := sel.Next(ctx, me, false)
	require.NoError(t, err)
	assert.Nil(t, got)

	// expanded → preferred range 18-30 admits the 24 year old
	got, err = sel.Next(ctx, me, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(36), got.UserID)
}

func TestNextExcludesLikedSkippedAndHistory(t *testing.T) {
	ctx := context.Background()
	database, sel, me := setup(t,
		dbtest.Profile(31, db.GenderFemale, 23),
		dbtest.Profile(41, db.GenderFemale, 21),
		dbtest.Profile(51, db.GenderFemale, 22),
		dbtest.Profile(61, db.GenderFemale, 22),
	)

	require.NoError(t, database.Create(&db.Like{FromUserID: 20, ToUserID: 41, CreatedAt: now}).Error)
	require.NoError(t, database.Create(&db.Skip{FromUserID: 20, ToUserID: 51, CreatedAt: now}).Error)
	unpaired := now.Add(time.Hour)
	require.NoError(t, database.Create(&db.PairHistory{User1ID: 20, User2ID: 61, PairedAt: now, UnpairedAt: &unpaired}).Error)

	got, err := sel.Next(ctx, me, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(31), got.UserID)
}

func TestNextNeverResurfacesHistoryEitherDirection(t *testing.T) {
	ctx := context.Background()
	database, sel, me := setup(t, dbtest.Profile(31, db.GenderFemale, 23))

	// open entry of a current pair
	require.NoError(t, database.Create(&db.PairHistory{User1ID: 20, User2ID: 31, PairedAt: now}).Error)

	got, err := sel.Next(ctx, me, true)
	require.NoError(t, err)
	assert.Nil(t, got)

	her := dbtest.Reload(t, database, 31)
	got, err = sel.Next(ctx, &her, true)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNextHonoursPreferredGender(t *testing.T) {
	ctx := context.Background()
	_, sel, me := setup(t,
		dbtest.Profile(31, db.GenderFemale, 22),
		dbtest.Profile(35, db.GenderMale, 22),
	)

	me.PreferredGender = db.GenderMale
	got, err := sel.Next(ctx, me, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(35), got.UserID)
}

func TestNextPrefersSharedInterests(t *testing.T) {
	ctx := context.Background()

	none := dbtest.Profile(31, db.GenderFemale, 22)
	none.Interests = "tango"
	one := dbtest.Profile(32, db.GenderFemale, 22)
	one.Interests = "Chess"
	two := dbtest.Profile(33, db.GenderFemale, 22)
	two.Interests = "coffee and chess"

	_, sel, me := setup(t, none, one, two)

	for i := 0; i < 10; i++ {
		got, err := sel.Next(ctx, me, false)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(33), got.UserID)
	}
}

func TestNextBreaksTiesAcrossCandidates(t *testing.T) {
	ctx := context.Background()
	_, sel, me := setup(t,
		dbtest.Profile(31, db.GenderFemale, 22),
		dbtest.Profile(32, db.GenderFemale, 22),
		dbtest.Profile(33, db.GenderFemale, 22),
	)

	seen := map[int64]bool{}
	for i := 0; i < 60; i++ {
		got, err := sel.Next(ctx, me, false)
		require.NoError(t, err)
		require.NotNil(t, got)
		seen[got.UserID] = true
	}
	assert.Len(t, seen, 3)
}

func TestNextIsReadOnly(t *testing.T) {
	ctx := context.Background()
	database, sel, me := setup(t)

	for i := 0; i < 2; i++ {
		got, err := sel.Next(ctx, me, false)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.False(t, dbtest.Reload(t, database, 20).SearchExpanded)
}

func TestTargetGender(t *testing.T) {
	assert.Equal(t, db.GenderFemale, selector.TargetGender(&db.Profile{Gender: db.GenderMale, PreferredGender: db.GenderAny}))
	assert.Equal(t, db.GenderMale, selector.TargetGender(&db.Profile{Gender: db.GenderFemale, PreferredGender: db.GenderAny}))
	assert.Equal(t, db.GenderFemale, selector.TargetGender(&db.Profile{Gender: db.GenderFemale, PreferredGender: db.GenderFemale}))
}
