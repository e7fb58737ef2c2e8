package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"simple star", "a/*.js", "a/out.js", true},
		{"star does not cross separators", "a/*.js", "a/b/out.js", false},
		{"doublestar crosses separators", "dist/**", "dist/assets/app.css", true},
		{"exact", "dist/build.log", "dist/build.log", true},
		{"no match", "dist/*.css", "dist/app.js", false},
		{"invalid pattern never matches", "a/[", "a/[", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.path))
		})
	}
}

func TestMatchAny(t *testing.T) {
	patterns := map[string]struct{}{
		"dist/*.css":     {},
		"dist/build.log": {},
	}
	assert.True(t, MatchAny(patterns, "dist/app.css"))
	assert.True(t, MatchAny(patterns, "dist/build.log"))
	assert.False(t, MatchAny(patterns, "src/app.css"))
	assert.False(t, MatchAny(nil, "dist/app.css"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("a/*.js", "dist/**", "exact.txt"))
	require.Error(t, Validate("a/["))
}
