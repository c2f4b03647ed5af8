// Package registration validates profile input and keeps the per-conversation
// registration wizard drafts.
package registration

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
)

const (
	maxNameLen      = 50
	minNameLen      = 2
	maxCourseLen    = 64
	maxInterestsLen = 200
	maxAboutLen     = 500
)

// ProfileInput is a complete registration as submitted by the user.
type ProfileInput struct {
	UserID          int64   `json:"user_id"`
	Username        string  `json:"username"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Age             int     `json:"age"`
	Gender          string  `json:"gender"`
	Course          string  `json:"course"`
	Interests       string  `json:"interests"`
	AboutMe         string  `json:"about_me"`
	MediaFileID     *string `json:"media_file_id,omitempty"`
	MediaType       *string `json:"media_type,omitempty"`
	PreferredGender string  `json:"preferred_gender"`
	PreferredAgeMin int     `json:"preferred_age_min"`
	PreferredAgeMax int     `json:"preferred_age_max"`
}

// Limits are the configured age bounds.
type Limits struct {
	MinAge int
	MaxAge int
}

// DefaultLimits matches the stock configuration.
func DefaultLimits() Limits { return Limits{MinAge: 16, MaxAge: 100} }

// Validate checks a full registration.
func (l Limits) Validate(in ProfileInput) error {
	if in.UserID <= 0 {
		return svcErr.Invalid("user_id", "must be positive")
	}
	if err := ValidateName("first_name", in.FirstName); err != nil {
		return err
	}
	if err := ValidateName("last_name", in.LastName); err != nil {
		return err
	}
	if in.Age < l.MinAge || in.Age > l.MaxAge {
		return svcErr.Invalid("age", "out of range")
	}
	if _, err := ParseGender(in.Gender); err != nil {
		return err
	}
	if utf8.RuneCountInString(in.Course) > maxCourseLen {
		return svcErr.Invalid("course", "too long")
	}
	if utf8.RuneCountInString(in.Interests) > maxInterestsLen {
		return svcErr.Invalid("interests", "too long")
	}
	if utf8.RuneCountInString(in.AboutMe) > maxAboutLen {
		return svcErr.Invalid("about_me", "too long")
	}
	if _, err := ParsePreferredGender(in.PreferredGender); err != nil {
		return err
	}
	if in.PreferredAgeMin < l.MinAge || in.PreferredAgeMax > l.MaxAge || in.PreferredAgeMin > in.PreferredAgeMax {
		return svcErr.Invalid("preferred_age", "out of range")
	}
	return nil
}

// ValidateName accepts 2-50 letters, spaces and hyphens.
func ValidateName(field, name string) error {
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return svcErr.Invalid(field, "must be 2-50 characters")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' {
			return svcErr.Invalid(field, "letters only")
		}
	}
	return nil
}

// ParseAge parses a free-text age within the limits.
func (l Limits) ParseAge(text string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || age < l.MinAge || age > l.MaxAge {
		return 0, svcErr.Invalid("age", "out of range")
	}
	return age, nil
}

// ParseAgeRange parses "min-max" or a single age.
func (l Limits) ParseAgeRange(text string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(text), "-", 2)
	lo, err := l.ParseAge(parts[0])
	if err != nil {
		return 0, 0, svcErr.Invalid("preferred_age", "out of range")
	}
	hi := lo
	if len(parts) == 2 {
		if hi, err = l.ParseAge(parts[1]); err != nil {
			return 0, 0, svcErr.Invalid("preferred_age", "out of range")
		}
	}
	if lo > hi {
		return 0, 0, svcErr.Invalid("preferred_age", "min above max")
	}
	return lo, hi, nil
}

// ParseGender normalises the user's own gender.
func ParseGender(text string) (string, error) {
	switch g := strings.ToLower(strings.TrimSpace(text)); g {
	case db.GenderMale, db.GenderFemale:
		return g, nil
	}
	return "", svcErr.Invalid("gender", "must be male or female")
}

// ParsePreferredGender normalises a partner gender preference.
func ParsePreferredGender(text string) (string, error) {
	switch g := strings.ToLower(strings.TrimSpace(text)); g {
	case db.GenderMale, db.GenderFemale, db.GenderAny:
		return g, nil
	}
	return "", svcErr.Invalid("preferred_gender", "must be male, female or any")
}
