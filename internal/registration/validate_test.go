package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcErr "github.com/meetme/matchmaker/internal/errors"
)

func validInput() ProfileInput {
	return ProfileInput{
		UserID:          20,
		FirstName:       "Anna",
		LastName:        "Smith-Jones",
		Age:             20,
		Gender:          "female",
		Course:          "CS",
		Interests:       "music, hiking",
		PreferredGender: "any",
		PreferredAgeMin: 18,
		PreferredAgeMax: 25,
	}
}

func TestValidate(t *testing.T) {
	l := DefaultLimits()
	require.NoError(t, l.Validate(validInput()))

	tests := []struct {
		name  string
		mod   func(*ProfileInput)
		field string
	}{
		{"short name", func(in *ProfileInput) { in.FirstName = "A" }, "first_name"},
		{"digits in name", func(in *ProfileInput) { in.LastName = "R2D2" }, "last_name"},
		{"too young", func(in *ProfileInput) { in.Age = 15 }, "age"},
		{"bad gender", func(in *ProfileInput) { in.Gender = "any" }, "gender"},
		{"bad preference", func(in *ProfileInput) { in.PreferredGender = "robots" }, "preferred_gender"},
		{"inverted range", func(in *ProfileInput) { in.PreferredAgeMin, in.PreferredAgeMax = 30, 20 }, "preferred_age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mod(&in)
			err := l.Validate(in)
			require.Error(t, err)
			var ve *svcErr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParseAgeRange(t *testing.T) {
	l := DefaultLimits()

	lo, hi, err := l.ParseAgeRange(" 18-25 ")
	require.NoError(t, err)
	assert.Equal(t, 18, lo)
	assert.Equal(t, 25, hi)

	lo, hi, err = l.ParseAgeRange("21")
	require.NoError(t, err)
	assert.Equal(t, 21, lo)
	assert.Equal(t, 21, hi)

	for _, bad := range []string{"25-18", "abc", "10-20", "20-120"} {
		_, _, err := l.ParseAgeRange(bad)
		assert.True(t, svcErr.IsValidation(err), bad)
	}
}

func TestParseGender(t *testing.T) {
	g, err := ParseGender(" Male ")
	require.NoError(t, err)
	assert.Equal(t, "male", g)

	_, err = ParseGender("any")
	assert.Error(t, err)

	g, err = ParsePreferredGender("ANY")
	require.NoError(t, err)
	assert.Equal(t, "any", g)
}
