// Package routing provides the value types for routing keys and binding
// patterns used by topic exchanges.
//
// This package defines the textual form shared by publishers and bindings:
//   - Key: a dot-delimited routing key attached to a published message
//   - Pattern: a binding pattern where "*" matches exactly one segment and
//     "#" matches zero or more segments
//
// Both forms are limited to 255 encoded bytes and may not contain empty
// segments. The empty string is the zero-segment key; it is valid and is
// matched only by patterns consisting solely of "#" tokens.
//
// Matching is a backtracking walk over segment lists rather than a regex
// translation, so overlapping "#" tokens behave exactly as a sequence
// matcher would:
//
//	p, _ := routing.ParsePattern("lazy.#")
//	k, _ := routing.ParseKey("lazy.orange.male.rabbit")
//	p.Matches(k) // true
//
// Example patterns:
//   - "*.orange.*" matches "quick.orange.rabbit", not "quick.brown.fox"
//   - "lazy.#" matches "lazy", "lazy.pink.rabbit", and deeper
//   - "#" matches every key, including the zero-segment key
package routing
