package pairing_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/meetme/matchmaker/internal/db"
	"github.com/meetme/matchmaker/internal/db/dbtest"
	"github.com/meetme/matchmaker/internal/pairing"
	"github.com/meetme/matchmaker/internal/registration"
	"github.com/meetme/matchmaker/internal/repository"
	"github.com/meetme/matchmaker/internal/selector"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	store  *repository.Store
	engine *pairing.Engine
	now    time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T, banClosesHistory bool, profiles ...db.Profile) *fixture {
	t.Helper()
	database := dbtest.Open(t)
	dbtest.Seed(t, database, profiles...)

	f := &fixture{db: database, store: repository.NewStore(database), now: t0}
	sel := selector.New(database, selector.DefaultAgeDiff, rand.New(rand.NewSource(1)))
	f.engine = pairing.New(f.store, sel, registration.DefaultLimits(), pairing.Options{
		BanClosesPairHistory: banClosesHistory,
		Now:                  func() time.Time { return f.now },
	}, nil)
	return f
}

// couple seeds user 20 (male, 22, "chess, coding, coffee") and user 31
// (female, 23).
func couple(t *testing.T, banClosesHistory bool, extra ...db.Profile) *fixture {
	t.Helper()
	u20 := dbtest.Profile(20, db.GenderMale, 22)
	u20.Interests = "chess, coding, coffee"
	u31 := dbtest.Profile(31, db.GenderFemale, 23)
	return newFixture(t, banClosesHistory, append([]db.Profile{u20, u31}, extra...)...)
}

func (f *fixture) reload(t *testing.T, id int64) db.Profile {
	t.Helper()
	return dbtest.Reload(t, f.db, id)
}

// pairUp drives two searching users through mutual like and confirmation.
func (f *fixture) pairUp(t *testing.T, a, b int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.Like(ctx, a, b)
	require.NoError(t, err)
	res, err := f.engine.Like(ctx, b, a)
	require.NoError(t, err)
	require.Equal(t, pairing.OutcomeMatched, res.Outcome)
	_, err = f.engine.Confirm(ctx, a)
	require.NoError(t, err)
	res, err = f.engine.Confirm(ctx, b)
	require.NoError(t, err)
	require.Equal(t, pairing.OutcomePaired, res.Outcome)
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}
