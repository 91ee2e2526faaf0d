package routing

import "testing"

// mustMatch parses both sides and reports whether the pattern matches the key.
func mustMatch(t *testing.T, pattern, key string) bool {
	t.Helper()
	p, err := ParsePattern(pattern)
	if err != nil {
		t.Fatalf("ParsePattern(%q) failed: %v", pattern, err)
	}
	k, err := ParseKey(key)
	if err != nil {
		t.Fatalf("ParseKey(%q) failed: %v", key, err)
	}
	return p.Matches(k)
}

func TestPattern_SingleWildcard(t *testing.T) {
	// "*" consumes exactly one segment.
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"*.orange.*", "quick.orange.rabbit", true},
		{"*.orange.*", "quick.orange.fox", true},
		{"*.orange.*", "quick.brown.fox", false},
		{"*.orange.*", "orange", false},
		{"*.orange.*", "quick.orange.male.rabbit", false},
		{"*.*.rabbit", "quick.brown.rabbit", true},
		{"*.*.rabbit", "lazy.rabbit", false},
	}
	for _, c := range cases {
		if got := mustMatch(t, c.pattern, c.key); got != c.want {
			t.Errorf("Pattern %q vs key %q: expected %v, got %v", c.pattern, c.key, c.want, got)
		}
	}
}

func TestPattern_MultiWildcard(t *testing.T) {
	// "#" consumes zero or more segments, including trailing excess.
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"lazy.#", "lazy", true},
		{"lazy.#", "lazy.pink.rabbit", true},
		{"lazy.#", "lazy.orange.male.rabbit", true},
		{"lazy.#", "quick.orange.fox", false},
		{"#.rabbit", "rabbit", true},
		{"#.rabbit", "lazy.pink.rabbit", true},
		{"#.rabbit", "lazy.pink.fox", false},
		{"lazy.#.rabbit", "lazy.rabbit", true},
		{"lazy.#.rabbit", "lazy.orange.male.rabbit", true},
		{"lazy.#.rabbit", "lazy.rabbit.fox", false},
	}
	for _, c := range cases {
		if got := mustMatch(t, c.pattern, c.key); got != c.want {
			t.Errorf("Pattern %q vs key %q: expected %v, got %v", c.pattern, c.key, c.want, got)
		}
	}
}

func TestPattern_HashAlone(t *testing.T) {
	// "#" alone matches every key, including the zero-segment key.
	for _, key := range []string{"", "a", "a.b", "quick.orange.male.rabbit"} {
		if !mustMatch(t, "#", key) {
			t.Errorf("Pattern \"#\" should match key %q", key)
		}
	}
}

func TestPattern_OverlappingHashes(t *testing.T) {
	// Multiple "#" tokens must backtrack, not greedily swallow the key.
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"#.orange.#", "quick.orange.rabbit", true},
		{"#.orange.#", "orange", true},
		{"#.orange.#", "quick.brown.fox", false},
		{"#.a.#.b.#", "a.b", true},
		{"#.a.#.b.#", "x.a.y.b.z", true},
		{"#.a.#.b.#", "b.a", false},
		{"#.#", "", true},
		{"#.#", "a", true},
	}
	for _, c := range cases {
		if got := mustMatch(t, c.pattern, c.key); got != c.want {
			t.Errorf("Pattern %q vs key %q: expected %v, got %v", c.pattern, c.key, c.want, got)
		}
	}
}

func TestPattern_NoWildcardsIsExactMatch(t *testing.T) {
	// With no wildcards a pattern behaves like direct-exchange equality:
	// exact literals and exact segment count.
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"quick.orange.rabbit", "quick.orange.rabbit", true},
		{"quick.orange.rabbit", "quick.orange.fox", false},
		{"quick.orange.rabbit", "quick.orange", false},
		{"quick.orange.rabbit", "quick.orange.rabbit.extra", false},
		{"", "", true},
		{"", "a", false},
	}
	for _, c := range cases {
		if got := mustMatch(t, c.pattern, c.key); got != c.want {
			t.Errorf("Pattern %q vs key %q: expected %v, got %v", c.pattern, c.key, c.want, got)
		}
	}
}

func TestPattern_SegmentCountMismatch(t *testing.T) {
	// Pure literal/"*" patterns never match a key of a different length.
	if mustMatch(t, "a.*", "a") {
		t.Error("Pattern \"a.*\" should not match one-segment key \"a\"")
	}
	if mustMatch(t, "a.*", "a.b.c") {
		t.Error("Pattern \"a.*\" should not match three-segment key \"a.b.c\"")
	}
	if mustMatch(t, "*", "") {
		t.Error("Pattern \"*\" should not match the zero-segment key")
	}
}
