// Package pagination implements the opaque cursor scheme used by every
// list endpoint: newest-first keyset pages over (created_at, id).
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for cursors the server did not mint.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is a decoded list position. Stores page strictly before it.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode packs a position into the opaque token handed to clients.
func Encode(createdAt time.Time, id string) string {
	payload := strconv.FormatInt(createdAt.UnixNano(), 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Decode unpacks a client-supplied token. Empty input means "from the
// top" and decodes to nil.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(payload), ":")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// ParseLimit reads a limit query parameter, applying the endpoint's
// default when absent or unparseable and clamping to its maximum.
func ParseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ComputePage trims an over-fetched result (queried with limit+1 rows)
// to the page actually returned. When a row was trimmed, the next cursor
// points at the last returned item via key.
func ComputePage[T any](items []T, limit int, key func(T) (time.Time, string)) (page []T, next string, hasMore bool) {
	if len(items) <= limit {
		return items, "", false
	}
	page = items[:limit]
	createdAt, id := key(page[len(page)-1])
	return page, Encode(createdAt, id), true
}
