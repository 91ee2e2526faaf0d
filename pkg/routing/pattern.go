package routing

import (
	"fmt"
	"strings"
)

// segmentKind classifies one pattern segment.
type segmentKind int

const (
	literal segmentKind = iota
	singleWildcard
	multiWildcard
)

// segment is one matcher in a binding pattern: a literal word, "*" or "#".
type segment struct {
	kind segmentKind
	word string // set only for literal segments
}

// Pattern is a parsed binding pattern: an ordered sequence of segment
// matchers. Patterns are immutable after parsing.
type Pattern struct {
	segments []segment
	text     string
}

// ParsePattern parses and validates a binding pattern.
// The empty string parses to the zero-segment pattern, which matches only the
// zero-segment key.
func ParsePattern(s string) (Pattern, error) {
	if len(s) > MaxEncodedLength {
		return Pattern{}, fmt.Errorf("%w: %d bytes", ErrTooLong, len(s))
	}
	if s == "" {
		return Pattern{}, nil
	}

	parts := strings.Split(s, ".")
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "":
			return Pattern{}, ErrEmptySegment
		case "*":
			segments = append(segments, segment{kind: singleWildcard})
		case "#":
			segments = append(segments, segment{kind: multiWildcard})
		default:
			segments = append(segments, segment{kind: literal, word: part})
		}
	}
	return Pattern{segments: segments, text: s}, nil
}

// String returns the textual dot-delimited form of the pattern.
func (p Pattern) String() string {
	return p.text
}

// Matches reports whether the pattern matches the given key.
//
// Matching walks both segment lists with backtracking over "#" positions so
// that any number of multi-segment wildcards, in any position, keeps exact
// sequence semantics. A pattern with no "#" matches only keys with the same
// segment count.
func (p Pattern) Matches(k Key) bool {
	return matchSegments(p.segments, k.segments)
}

// matchSegments is a glob-style matcher over segment lists: "*" consumes
// exactly one key segment, "#" consumes zero or more. Backtracking is
// iterative, resuming from the most recent "#" when a later segment fails.
func matchSegments(pattern []segment, key []string) bool {
	pi, ki := 0, 0
	starPi, starKi := -1, 0

	for ki < len(key) {
		switch {
		case pi < len(pattern) && pattern[pi].kind == multiWildcard:
			// Remember the gap; first try consuming zero segments.
			starPi, starKi = pi, ki
			pi++
		case pi < len(pattern) && (pattern[pi].kind == singleWildcard || pattern[pi].word == key[ki]):
			pi++
			ki++
		case starPi >= 0:
			// Mismatch past a "#": widen the gap by one segment and retry.
			starKi++
			pi, ki = starPi+1, starKi
		default:
			return false
		}
	}

	// Key exhausted; remaining pattern segments must all be "#".
	for pi < len(pattern) {
		if pattern[pi].kind != multiWildcard {
			return false
		}
		pi++
	}
	return true
}
