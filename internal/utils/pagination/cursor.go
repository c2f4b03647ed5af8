package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	svcErr "github.com/meetme/matchmaker/internal/errors"
)

// Cursor is the opaque pagination state we encode/decode.
// Lists are ordered oldest first; CreatedUnix (millis) + ID establish a
// stable position.
type Cursor struct {
	ID          int64 `json:"id"`
	CreatedUnix int64 `json:"created_unix,omitempty"`
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool { return c.ID == 0 && c.CreatedUnix == 0 }

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 token into a Cursor.
// Nil or empty token → empty cursor (first page). A malformed token is a
// ValidationError on field "pagination_token".
func Decode(token *string) (Cursor, error) {
	if token == nil || *token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(*token)
	if err != nil {
		return Cursor{}, svcErr.Invalid("pagination_token", "malformed")
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, svcErr.Invalid("pagination_token", "malformed")
	}
	return c, nil
}

// Trim cuts a page fetched with LIMIT limit+1 down to limit rows and, when
// the extra row proves there is more, returns the token of the last kept row.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, *string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, nil
	}
	rows = rows[:limit]
	token, err := Encode(cursorOf(rows[limit-1]))
	if err != nil {
		return rows, nil
	}
	return rows, &token
}
