// Package watermark persists per-stream sync positions.
package watermark

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Stream keys. Cascade markers live next to the stream they re-derive.
const (
	KeyMovies         = "movies"
	KeyPersons        = "persons"
	KeyGenres         = "genres"
	KeyMoviesByPerson = "movies:persons"
	KeyMoviesByGenre  = "movies:genres"
)

// Keys lists every key the sync writes.
var Keys = []string{KeyMovies, KeyPersons, KeyGenres, KeyMoviesByPerson, KeyMoviesByGenre}

// IsKey reports whether key is one of Keys.
func IsKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// OverrideLayout is the operator format for a manual starting point.
const OverrideLayout = "2006-01-02-15:04"

// Store reads and writes watermarks. A missing key is reported with ok == false.
type Store interface {
	Get(ctx context.Context, key string) (t time.Time, ok bool, err error)
	Set(ctx context.Context, key string, t time.Time) error
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	List(ctx context.Context) (map[string]time.Time, error)
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// Format renders a watermark the way it is persisted.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Parse accepts RFC 3339 values and the offset-less ISO values older writers produced.
// Values without an offset are read as UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid watermark %q", s)
}

// ParseOverride reads an operator supplied starting point in OverrideLayout, as UTC.
func ParseOverride(s string) (time.Time, error) {
	t, err := time.Parse(OverrideLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q: expected YYYY-MM-DD-HH:MM", s)
	}
	return t.UTC(), nil
}
