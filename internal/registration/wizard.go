package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meetme/matchmaker/internal/cache"
	svcErr "github.com/meetme/matchmaker/internal/errors"
)

// Step is one question of the registration wizard.
type Step string

const (
	StepFirstName       Step = "first_name"
	StepLastName        Step = "last_name"
	StepAge             Step = "age"
	StepGender          Step = "gender"
	StepCourse          Step = "course"
	StepInterests       Step = "interests"
	StepMedia           Step = "media"
	StepAbout           Step = "about"
	StepPreferredGender Step = "preferred_gender"
	StepPreferredAge    Step = "preferred_age"
	StepConfirm         Step = "confirm"
)

var order = []Step{
	StepFirstName, StepLastName, StepAge, StepGender, StepCourse, StepInterests,
	StepMedia, StepAbout, StepPreferredGender, StepPreferredAge, StepConfirm,
}

// SkipWord lets the user leave an optional step empty.
const SkipWord = "skip"

// Draft is the scratch buffer of one in-progress registration.
type Draft struct {
	Step  Step         `json:"step"`
	Input ProfileInput `json:"input"`
}

// Wizard stores drafts in Redis so they survive restarts and expire on
// their own when abandoned.
type Wizard struct {
	cache  *cache.RedisCache
	limits Limits
	ttl    time.Duration
}

// NewWizard creates a Wizard.
func NewWizard(c *cache.RedisCache, limits Limits, ttl time.Duration) *Wizard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Wizard{cache: c, limits: limits, ttl: ttl}
}

// Start opens a fresh draft, discarding any previous one.
func (w *Wizard) Start(ctx context.Context, userID int64, username string) (*Draft, error) {
	d := &Draft{
		Step:  StepFirstName,
		Input: ProfileInput{UserID: userID, Username: username},
	}
	return d, w.save(ctx, d)
}

// Current returns the user's draft, or ErrNotFound when none is open.
func (w *Wizard) Current(ctx context.Context, userID int64) (*Draft, error) {
	var d Draft
	err := w.cache.GetJSON(ctx, w.cache.KeyForDraft(userID), &d)
	if errors.Is(err, cache.ErrMiss) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Answer applies a text answer to the current step and advances.
// Invalid answers return a ValidationError and leave the draft unchanged.
func (w *Wizard) Answer(ctx context.Context, userID int64, text string) (*Draft, error) {
	d, err := w.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	skip := strings.EqualFold(text, SkipWord)
	in := &d.Input

	switch d.Step {
	case StepFirstName:
		if err := ValidateName("first_name", text); err != nil {
			return nil, err
		}
		in.FirstName = text
	case StepLastName:
		if err := ValidateName("last_name", text); err != nil {
			return nil, err
		}
		in.LastName = text
	case StepAge:
		if in.Age, err = w.limits.ParseAge(text); err != nil {
			return nil, err
		}
	case StepGender:
		if in.Gender, err = ParseGender(text); err != nil {
			return nil, err
		}
	case StepCourse:
		if utf8.RuneCountInString(text) > maxCourseLen {
			return nil, svcErr.Invalid("course", "too long")
		}
		if !skip {
			in.Course = text
		}
	case StepInterests:
		if utf8.RuneCountInString(text) > maxInterestsLen {
			return nil, svcErr.Invalid("interests", "too long")
		}
		if !skip {
			in.Interests = text
		}
	case StepMedia:
		if !skip {
			return nil, svcErr.Invalid("media", "send a photo or video, or skip")
		}
	case StepAbout:
		if utf8.RuneCountInString(text) > maxAboutLen {
			return nil, svcErr.Invalid("about_me", "too long")
		}
		if !skip {
			in.AboutMe = text
		}
	case StepPreferredGender:
		if in.PreferredGender, err = ParsePreferredGender(text); err != nil {
			return nil, err
		}
	case StepPreferredAge:
		if in.PreferredAgeMin, in.PreferredAgeMax, err = w.limits.ParseAgeRange(text); err != nil {
			return nil, err
		}
	case StepConfirm:
		return nil, svcErr.ErrInvalidState
	}

	d.Step = next(d.Step)
	return d, w.save(ctx, d)
}

// AttachMedia stores a media reference at the media step.
func (w *Wizard) AttachMedia(ctx context.Context, userID int64, fileID, mediaType string) (*Draft, error) {
	d, err := w.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d.Step != StepMedia {
		return nil, svcErr.ErrInvalidState
	}
	d.Input.MediaFileID = &fileID
	d.Input.MediaType = &mediaType
	d.Step = next(d.Step)
	return d, w.save(ctx, d)
}

// Finish validates the completed draft and hands it to submit. The draft is
// dropped only after submit succeeds, so a failed submit can be retried.
func (w *Wizard) Finish(ctx context.Context, userID int64, submit func(context.Context, ProfileInput) error) (ProfileInput, error) {
	d, err := w.Current(ctx, userID)
	if err != nil {
		return ProfileInput{}, err
	}
	if d.Step != StepConfirm {
		return ProfileInput{}, svcErr.ErrInvalidState
	}
	if err := w.limits.Validate(d.Input); err != nil {
		return ProfileInput{}, err
	}
	if err := submit(ctx, d.Input); err != nil {
		return ProfileInput{}, err
	}
	if err := w.Cancel(ctx, userID); err != nil {
		return d.Input, fmt.Errorf("drop submitted draft: %w", err)
	}
	return d.Input, nil
}

// Cancel drops the draft.
func (w *Wizard) Cancel(ctx context.Context, userID int64) error {
	return w.cache.Del(ctx, w.cache.KeyForDraft(userID))
}

func (w *Wizard) save(ctx context.Context, d *Draft) error {
	return w.cache.SetJSON(ctx, w.cache.KeyForDraft(d.Input.UserID), d, w.ttl)
}

func next(s Step) Step {
	for i, step := range order {
		if step == s && i+1 < len(order) {
			return order[i+1]
		}
	}
	return StepConfirm
}
