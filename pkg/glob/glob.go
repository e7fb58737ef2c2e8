// Package glob wraps doublestar pattern matching for the invalidation index.
//
// Matching is purely functional: patterns and paths go in, a boolean comes
// out. Paths are normalized to forward slashes before matching so glob
// semantics are identical across platforms. Syntactically invalid patterns
// are accepted everywhere and simply never match.
package glob

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/relictools/relic/errors"
)

// Match reports whether relPath matches pattern. relPath must be relative to
// the watched root. Invalid patterns never match.
func Match(pattern, relPath string) bool {
	matched, err := doublestar.Match(pattern, filepath.ToSlash(relPath))
	return err == nil && matched
}

// MatchAny reports whether relPath matches any of the given patterns.
func MatchAny(patterns map[string]struct{}, relPath string) bool {
	normalized := filepath.ToSlash(relPath)
	for pattern := range patterns {
		if matched, err := doublestar.Match(pattern, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// Validate checks every pattern for syntactic validity. Callers that want
// early feedback (e.g. the CLI) use this; the index itself tolerates invalid
// patterns per Match semantics.
func Validate(patterns ...string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return errors.New(errors.ErrCodeInvalidGlob, "invalid glob pattern").
				WithDetail("pattern", pattern)
		}
	}
	return nil
}
