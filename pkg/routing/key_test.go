package routing

import (
	"errors"
	"strings"
	"testing"
)

func TestParseKey_Valid(t *testing.T) {
	k, err := ParseKey("quick.orange.rabbit")
	if err != nil {
		t.Fatalf("Expected no error parsing valid key, got: %v", err)
	}
	if len(k.Segments()) != 3 {
		t.Errorf("Expected 3 segments, got %d", len(k.Segments()))
	}
	if k.String() != "quick.orange.rabbit" {
		t.Errorf("Expected round-trip string, got %q", k.String())
	}
}

func TestParseKey_Empty(t *testing.T) {
	// The empty string is the zero-segment key, not an error.
	k, err := ParseKey("")
	if err != nil {
		t.Fatalf("Expected zero-segment key to parse, got: %v", err)
	}
	if len(k.Segments()) != 0 {
		t.Errorf("Expected 0 segments, got %d", len(k.Segments()))
	}
}

func TestParseKey_EmptySegment(t *testing.T) {
	for _, s := range []string{"a..b", ".a", "a.", "."} {
		if _, err := ParseKey(s); !errors.Is(err, ErrEmptySegment) {
			t.Errorf("ParseKey(%q): expected ErrEmptySegment, got %v", s, err)
		}
	}
}

func TestParseKey_TooLong(t *testing.T) {
	long := strings.Repeat("a", MaxEncodedLength+1)
	if _, err := ParseKey(long); !errors.Is(err, ErrTooLong) {
		t.Errorf("Expected ErrTooLong for %d-byte key, got %v", len(long), err)
	}

	// Exactly at the limit is fine.
	if _, err := ParseKey(strings.Repeat("a", MaxEncodedLength)); err != nil {
		t.Errorf("Expected 255-byte key to parse, got %v", err)
	}
}

func TestParseKey_WildcardReserved(t *testing.T) {
	for _, s := range []string{"*", "a.*", "#", "lazy.#"} {
		if _, err := ParseKey(s); !errors.Is(err, ErrWildcardInKey) {
			t.Errorf("ParseKey(%q): expected ErrWildcardInKey, got %v", s, err)
		}
	}
}

func TestParsePattern_Invalid(t *testing.T) {
	if _, err := ParsePattern("a..b"); !errors.Is(err, ErrEmptySegment) {
		t.Errorf("Expected ErrEmptySegment, got %v", err)
	}
	long := strings.Repeat("a.", 200) + "a"
	if _, err := ParsePattern(long); !errors.Is(err, ErrTooLong) {
		t.Errorf("Expected ErrTooLong, got %v", err)
	}
}
