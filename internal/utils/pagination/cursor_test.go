package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcErr "github.com/meetme/matchmaker/internal/errors"
)

func TestDecodeEmptyToken(t *testing.T) {
	c, err := Decode(nil)
	require.NoError(t, err)
	assert.True(t, c.IsZero())

	empty := ""
	c, err = Decode(&empty)
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestEncodeDecode(t *testing.T) {
	token, err := Encode(Cursor{ID: 42, CreatedUnix: 1700000000000})
	require.NoError(t, err)

	c, err := Decode(&token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.ID)
	assert.Equal(t, int64(1700000000000), c.CreatedUnix)
}

func TestDecodeGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24="} { // "not-json"
		_, err := Decode(&token)
		assert.True(t, svcErr.IsValidation(err), token)
	}
}

func TestTrim(t *testing.T) {
	byID := func(v int) Cursor { return Cursor{ID: int64(v)} }

	rows, next := Trim([]int{1, 2, 3}, 3, byID)
	assert.Equal(t, []int{1, 2, 3}, rows)
	assert.Nil(t, next)

	rows, next = Trim([]int{1, 2, 3, 4}, 3, byID)
	assert.Equal(t, []int{1, 2, 3}, rows)
	require.NotNil(t, next)

	c, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.ID)
}
