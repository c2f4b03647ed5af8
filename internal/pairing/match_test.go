package pairing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetme/matchmaker/internal/db"
	"github.com/meetme/matchmaker/internal/db/dbtest"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/pairing"
)

func TestScenario_MutualLikeThenDualConfirm(t *testing.T) {
	ctx := context.Background()
	f := couple(t, true)

	res, err := f.engine.Like(ctx, 20, 31)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeLiked, res.Outcome)
	assert.Equal(t, db.PairingSearching, f.reload(t, 20).Pairing)

	res, err = f.engine.Like(ctx, 31, 20)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeMatched, res.Outcome)
	require.NotNil(t, res.Match)
	assert.Equal(t, int64(20), res.Match.User1ID)
	assert.Equal(t, int64(31), res.Match.User2ID)
	assert.Equal(t, []notify.Event{{Kind: notify.KindMatchFound, Recipient: 20, Counterpart: 31}}, res.Events)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 20).Pairing)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 31).Pairing)

	res, err = f.engine.Confirm(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeConfirmed, res.Outcome)
	assert.True(t, res.Match.User1Confirmed)
	assert.False(t, res.Match.User2Confirmed)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 20).Pairing)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 31).Pairing)

	res, err = f.engine.Confirm(ctx, 31)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomePaired, res.Outcome)
	assert.Equal(t, db.MatchConfirmed, res.Match.Status)
	assert.NotNil(t, res.Match.ConfirmedAt)

	u20, u31 := f.reload(t, 20), f.reload(t, 31)
	assert.Equal(t, db.PairingPaired, u20.Pairing)
	assert.Equal(t, db.PairingPaired, u31.Pairing)
	require.NotNil(t, u20.PartnerID)
	require.NotNil(t, u31.PartnerID)
	assert.Equal(t, int64(31), *u20.PartnerID)
	assert.Equal(t, int64(20), *u31.PartnerID)

	history, err := f.store.Interactions.History(ctx, 20, 31)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].UnpairedAt)
}

func TestLike_ConcurrentMutualLikesOpenOneMatch(t *testing.T) {
	ctx := context.Background()
	f := couple(t, true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	outcomes := make([]pairing.Outcome, 2)
	for i, pair := range [][2]int64{{20, 31}, {31, 20}} {
		wg.Add(1)
		go func(i int, from, to int64) {
			defer wg.Done()
			res, err := f.engine.Like(ctx, from, to)
			errs[i] = err
			if err == nil {
				outcomes[i] = res.Outcome
			}
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.ElementsMatch(t, []pairing.Outcome{pairing.OutcomeLiked, pairing.OutcomeMatched}, outcomes)

	n, err := f.store.Matches.CountForPair(ctx, 20, 31)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 20).Pairing)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 31).Pairing)
}

func TestLike_DuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	f := couple(t, true)

	_, err := f.engine.Like(ctx, 20, 31)
	require.NoError(t, err)
	res, err := f.engine.Like(ctx, 20, 31)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeAlreadyLiked, res.Outcome)
	assert.Equal(t, int64(1), f.count(t, &db.Like{}, "from_user_id = ?", 20))
}

func TestLike_NoMatchUnlessBothSearching(t *testing.T) {
	ctx := context.Background()
	busy := dbtest.Profile(32, db.GenderFemale, 22)
	busy.Pairing = db.PairingPaired
	f := couple(t, true, busy)

	require.NoError(t, f.db.Create(&db.Like{FromUserID: 32, ToUserID: 20, CreatedAt: t0}).Error)

	res, err := f.engine.Like(ctx, 20, 32)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeLiked, res.Outcome)
	assert.Zero(t, f.count(t, &db.Match{}, "1 = 1"))
	assert.Equal(t, db.PairingSearching, f.reload(t, 20).Pairing)
}

func TestLike_Rejections(t *testing.T) {
	ctx := context.Background()
	banned := dbtest.Profile(40, db.GenderFemale, 22)
	banned.Banned = true
	f := couple(t, true, banned)

	_, err := f.engine.Like(ctx, 20, 20)
	assert.True(t, svcErr.IsValidation(err))

	_, err = f.engine.Like(ctx, 20, 40)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = f.engine.Like(ctx, 40, 20)
	assert.ErrorIs(t, err, svcErr.ErrBanned)

	_, err = f.engine.Like(ctx, 20, 999)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestSkip(t *testing.T) {
	ctx := context.Background()
	banned := dbtest.Profile(40, db.GenderFemale, 22)
	banned.Banned = true
	f := couple(t, true, banned)

	res, err := f.engine.Skip(ctx, 20, 31)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeSkipped, res.Outcome)
	assert.Equal(t, int64(31), res.Counterpart.UserID)

	res, err = f.engine.Skip(ctx, 20, 31)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeAlreadySkipped, res.Outcome)

	_, err = f.engine.Skip(ctx, 20, 20)
	assert.True(t, svcErr.IsValidation(err))

	_, err = f.engine.Skip(ctx, 20, 999)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = f.engine.Skip(ctx, 20, 40)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = f.engine.Skip(ctx, 40, 20)
	assert.ErrorIs(t, err, svcErr.ErrBanned)

	assert.Equal(t, int64(1), f.count(t, &db.Skip{}, "from_user_id = ?", 20))
	assert.Zero(t, f.count(t, &db.Skip{}, "to_user_id IN ?", []int64{40, 999}))
	assert.Zero(t, f.count(t, &db.Skip{}, "from_user_id = ?", 40))
}

func TestConfirm_WithoutMatchIsNotFound(t *testing.T) {
	f := couple(t, true)
	_, err := f.engine.Confirm(context.Background(), 20)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestConfirm_Twice(t *testing.T) {
	ctx := context.Background()
	f := couple(t, true)
	_, _ = f.engine.Like(ctx, 20, 31)
	_, _ = f.engine.Like(ctx, 31, 20)

	_, err := f.engine.Confirm(ctx, 20)
	require.NoError(t, err)
	res, err := f.engine.Confirm(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeAlreadyConfirmed, res.Outcome)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 20).Pairing)
}

func TestReject_RevertsBothAndBlocksRematch(t *testing.T) {
	ctx := context.Background()
	f := couple(t, true)
	_, _ = f.engine.Like(ctx, 20, 31)
	_, _ = f.engine.Like(ctx, 31, 20)
	_, err := f.engine.Confirm(ctx, 20)
	require.NoError(t, err)

	res, err := f.engine.Reject(ctx, 31)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeMatchRejected, res.Outcome)
	assert.Equal(t, db.MatchRejected, res.Match.Status)
	assert.Equal(t, []notify.Event{{Kind: notify.KindMatchRejected, Recipient: 20, Counterpart: 31}}, res.Events)

	assert.Equal(t, db.PairingSearching, f.reload(t, 20).Pairing)
	assert.Equal(t, db.PairingSearching, f.reload(t, 31).Pairing)
	skipped, err := f.store.Interactions.HasSkipped(ctx, 20, 31)
	require.NoError(t, err)
	assert.True(t, skipped)
	skipped, err = f.store.Interactions.HasSkipped(ctx, 31, 20)
	require.NoError(t, err)
	assert.True(t, skipped)

	_, err = f.engine.Reject(ctx, 20)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestScenario_SweeperExpiresStaleMatch(t *testing.T) {
	ctx := context.Background()
	f := couple(t, true)

	_, _ = f.engine.Like(ctx, 20, 31)
	_, err := f.engine.Like(ctx, 31, 20)
	require.NoError(t, err)

	f.advance(50 * time.Hour)
	cutoff := f.now.Add(-48 * time.Hour)

	res, err := f.engine.ExpireMatch(ctx, 20, cutoff)
	require.NoError(t, err)
	assert.Equal(t, pairing.OutcomeMatchExpired, res.Outcome)
	assert.Len(t, res.Events, 2)

	assert.Equal(t, db.PairingSearching, f.reload(t, 20).Pairing)
	assert.Equal(t, db.PairingSearching, f.reload(t, 31).Pairing)
	assert.Equal(t, int64(1), f.count(t, &db.Skip{}, "from_user_id = ? AND to_user_id = ?", 20, 31))
	assert.Equal(t, int64(1), f.count(t, &db.Skip{}, "from_user_id = ? AND to_user_id = ?", 31, 20))

	// the other side was resolved with it
	_, err = f.engine.ExpireMatch(ctx, 31, cutoff)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestExpireMatch_FreshMatchUntouched(t *testing.T) {
	ctx := context.Background()
	f := couple(t, true)
	_, _ = f.engine.Like(ctx, 20, 31)
	_, _ = f.engine.Like(ctx, 31, 20)

	f.advance(10 * time.Hour)
	_, err := f.engine.ExpireMatch(ctx, 20, f.now.Add(-48*time.Hour))
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
	assert.Equal(t, db.PairingMatchedPending, f.reload(t, 20).Pairing)
}

func TestExpireMatch_ReleasesOrphan(t *testing.T) {
	ctx := context.Background()
	orphan := dbtest.Profile(50, db.GenderMale, 30)
	orphan.Pairing = db.PairingMatchedPending
	orphan.StatusUpdatedAt = t0.Add(-100 * time.Hour)
	f := newFixture(t, true, orphan)

	res, err := f.engine.ExpireMatch(ctx, 50, t0.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, res.Counterpart)
	assert.Equal(t, db.PairingSearching, f.reload(t, 50).Pairing)
}
