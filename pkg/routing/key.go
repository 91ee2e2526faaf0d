package routing

import (
	"errors"
	"fmt"
	"strings"
)

// MaxEncodedLength is the maximum encoded length, in bytes, of a routing key
// or binding pattern.
const MaxEncodedLength = 255

var (
	// ErrTooLong is returned when a key or pattern exceeds MaxEncodedLength bytes
	ErrTooLong = errors.New("routing key exceeds 255 bytes")
	// ErrEmptySegment is returned when a key or pattern contains an empty segment
	ErrEmptySegment = errors.New("routing key contains an empty segment")
	// ErrWildcardInKey is returned when a routing key contains a reserved wildcard token
	ErrWildcardInKey = errors.New("routing key may not contain wildcard segments")
)

// Key is a parsed routing key: an ordered sequence of dot-delimited segments.
// The zero value is the zero-segment key (the empty string).
type Key struct {
	segments []string
}

// ParseKey parses and validates a routing key.
// The empty string parses to the zero-segment key.
func ParseKey(s string) (Key, error) {
	if len(s) > MaxEncodedLength {
		return Key{}, fmt.Errorf("%w: %d bytes", ErrTooLong, len(s))
	}
	if s == "" {
		return Key{}, nil
	}

	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if seg == "" {
			return Key{}, ErrEmptySegment
		}
		if seg == "*" || seg == "#" {
			return Key{}, fmt.Errorf("%w: %q", ErrWildcardInKey, seg)
		}
	}
	return Key{segments: segments}, nil
}

// Segments returns the ordered key segments. The zero-segment key returns nil.
func (k Key) Segments() []string {
	return k.segments
}

// String returns the textual dot-delimited form of the key.
func (k Key) String() string {
	return strings.Join(k.segments, ".")
}
