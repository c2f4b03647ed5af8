package registration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetme/matchmaker/internal/cache"
	"github.com/meetme/matchmaker/internal/config"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/registration"
)

func newWizard(t *testing.T) (*registration.Wizard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return registration.NewWizard(cache.NewRedisCache(cfg), registration.DefaultLimits(), 10*time.Minute), mr
}

func TestWizard_FullFlow(t *testing.T) {
	ctx := context.Background()
	w, _ := newWizard(t)

	d, err := w.Start(ctx, 20, "anna")
	require.NoError(t, err)
	assert.Equal(t, registration.StepFirstName, d.Step)

	answers := []string{"Anna", "Smith", "20", "female", "CS", "music, hiking, chess"}
	for _, a := range answers {
		_, err := w.Answer(ctx, 20, a)
		require.NoError(t, err, a)
	}

	d, err = w.AttachMedia(ctx, 20, "file-1", "photo")
	require.NoError(t, err)
	assert.Equal(t, registration.StepAbout, d.Step)

	for _, a := range []string{"skip", "any", "19-22"} {
		_, err := w.Answer(ctx, 20, a)
		require.NoError(t, err, a)
	}

	var submitted registration.ProfileInput
	in, err := w.Finish(ctx, 20, func(_ context.Context, in registration.ProfileInput) error {
		submitted = in
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, in, submitted)
	assert.Equal(t, int64(20), in.UserID)
	assert.Equal(t, "anna", in.Username)
	assert.Equal(t, 20, in.Age)
	assert.Equal(t, "female", in.Gender)
	assert.Equal(t, "", in.AboutMe)
	require.NotNil(t, in.MediaFileID)
	assert.Equal(t, "file-1", *in.MediaFileID)
	assert.Equal(t, 19, in.PreferredAgeMin)
	assert.Equal(t, 22, in.PreferredAgeMax)

	_, err = w.Current(ctx, 20)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestWizard_InvalidAnswerKeepsStep(t *testing.T) {
	ctx := context.Background()
	w, _ := newWizard(t)

	_, err := w.Start(ctx, 5, "")
	require.NoError(t, err)
	_, err = w.Answer(ctx, 5, "X")
	assert.True(t, svcErr.IsValidation(err))

	d, err := w.Current(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, registration.StepFirstName, d.Step)
}

func TestWizard_FinishBeforeConfirm(t *testing.T) {
	ctx := context.Background()
	w, _ := newWizard(t)

	_, err := w.Start(ctx, 5, "")
	require.NoError(t, err)
	_, err = w.Finish(ctx, 5, func(context.Context, registration.ProfileInput) error {
		t.Fatal("submit called before confirm")
		return nil
	})
	assert.ErrorIs(t, err, svcErr.ErrInvalidState)
}

func TestWizard_FailedSubmitKeepsDraft(t *testing.T) {
	ctx := context.Background()
	w, _ := newWizard(t)

	_, err := w.Start(ctx, 20, "anna")
	require.NoError(t, err)
	for _, a := range []string{"Anna", "Smith", "20", "female", "skip", "skip"} {
		_, err := w.Answer(ctx, 20, a)
		require.NoError(t, err, a)
	}
	for _, a := range []string{"skip", "skip", "any", "19-22"} {
		_, err := w.Answer(ctx, 20, a)
		require.NoError(t, err, a)
	}

	storeDown := errors.New("store unavailable")
	_, err = w.Finish(ctx, 20, func(context.Context, registration.ProfileInput) error { return storeDown })
	assert.ErrorIs(t, err, storeDown)

	d, err := w.Current(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, registration.StepConfirm, d.Step)

	// retry goes through and clears the draft
	_, err = w.Finish(ctx, 20, func(context.Context, registration.ProfileInput) error { return nil })
	require.NoError(t, err)
	_, err = w.Current(ctx, 20)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestWizard_DraftExpires(t *testing.T) {
	ctx := context.Background()
	w, mr := newWizard(t)

	_, err := w.Start(ctx, 5, "")
	require.NoError(t, err)
	mr.FastForward(11 * time.Minute)

	_, err = w.Answer(ctx, 5, "Anna")
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}
