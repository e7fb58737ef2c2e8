package hashglob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInvariants asserts bidirectional consistency between the two maps and
// the absence of empty entries, with the one sanctioned exception of stale
// reverse entries left behind by re-registration.
func checkInvariants(t *testing.T, idx *trackingIndex) {
	t.Helper()

	for hash, set := range idx.hashGlobs {
		require.NotEmpty(t, set.Include, "hash %q has an empty include set", hash)
		for pattern := range set.Include {
			hashes, ok := idx.globStatus[pattern]
			require.True(t, ok, "glob %q missing from inverted index", pattern)
			_, ok = hashes[hash]
			require.True(t, ok, "hash %q missing from inverted index entry for %q", hash, pattern)
		}
	}

	for pattern, hashes := range idx.globStatus {
		require.NotEmpty(t, hashes, "glob %q has an empty hash set", pattern)
		for hash := range hashes {
			_, ok := idx.hashGlobs[hash]
			require.True(t, ok, "inverted index references unknown hash %q via %q", hash, pattern)
		}
	}
}

func set(patterns ...string) map[string]struct{} {
	return toSet(patterns)
}

func TestRegisterAndQuery(t *testing.T) {
	idx := newTrackingIndex()
	idx.register("h1", set("a/*.js", "b/*.js"), set("a/out.js"))
	checkInvariants(t, idx)

	assert.ElementsMatch(t, []string{"a/*.js", "b/*.js"}, idx.stillIncluded("h1", []string{"a/*.js", "b/*.js"}))
	assert.Empty(t, idx.stillIncluded("h1", []string{"c/*.js"}))

	// Unknown hashes yield the candidates unchanged.
	assert.Equal(t, []string{"x/*.go"}, idx.stillIncluded("nope", []string{"x/*.go"}))
}

func TestApplyBatchRetires(t *testing.T) {
	idx := newTrackingIndex()
	idx.register("h1", set("a/*.js"), set("a/out.js"))

	// Matches the include glob but no exclude glob: nothing retires.
	retired, unsubscribe := idx.applyBatch([]string{"a/other.js"})
	assert.Empty(t, retired)
	assert.Empty(t, unsubscribe)
	checkInvariants(t, idx)

	// Matches include and exclude: the association retires and, with the
	// include set emptied, the hash entry goes away.
	retired, unsubscribe = idx.applyBatch([]string{"a/out.js"})
	assert.Equal(t, []Retirement{{Hash: "h1", Glob: "a/*.js"}}, retired)
	assert.Equal(t, []string{"a/*.js"}, unsubscribe)
	assert.Empty(t, idx.hashGlobs)
	assert.Empty(t, idx.globStatus)
	checkInvariants(t, idx)
}

func TestApplyBatchPartialRetirement(t *testing.T) {
	idx := newTrackingIndex()
	idx.register("h1", set("a/*.js", "b/*.js"), set("a/out.js"))

	retired, _ := idx.applyBatch([]string{"a/out.js"})
	require.Len(t, retired, 1)
	checkInvariants(t, idx)

	assert.Equal(t, []string{"b/*.js"}, idx.stillIncluded("h1", []string{"a/*.js", "b/*.js"}))
}

func TestApplyBatchSharedGlob(t *testing.T) {
	idx := newTrackingIndex()
	idx.register("h1", set("dist/*.css"), set("dist/one.css"))
	idx.register("h2", set("dist/*.css"), set("dist/two.css"))

	// Only h1's exclude matches, so only h1 retires; the glob is still
	// tracked by h2 and stays in the inverted index.
	retired, unsubscribe := idx.applyBatch([]string{"dist/one.css"})
	assert.Equal(t, []Retirement{{Hash: "h1", Glob: "dist/*.css"}}, retired)
	assert.Equal(t, []string{"dist/*.css"}, unsubscribe)
	checkInvariants(t, idx)

	_, ok := idx.globStatus["dist/*.css"]["h2"]
	assert.True(t, ok, "h2 should still track the shared glob")

	retired, _ = idx.applyBatch([]string{"dist/two.css"})
	assert.Equal(t, []Retirement{{Hash: "h2", Glob: "dist/*.css"}}, retired)
	assert.Empty(t, idx.globStatus)
	checkInvariants(t, idx)
}

func TestApplyBatchDeduplicatesUnsubscribe(t *testing.T) {
	idx := newTrackingIndex()
	idx.register("h1", set("dist/*.css"), set("dist/**"))
	idx.register("h2", set("dist/*.css"), set("dist/**"))

	// Both hashes retire the same glob in one batch; it is reported for
	// unsubscription once.
	retired, unsubscribe := idx.applyBatch([]string{"dist/app.css"})
	assert.Len(t, retired, 2)
	assert.Equal(t, []string{"dist/*.css"}, unsubscribe)
	checkInvariants(t, idx)
}

func TestReRegistrationLeavesStaleReverseEntry(t *testing.T) {
	idx := newTrackingIndex()
	idx.register("h1", set("old/*.js"), set("old/out.js"))
	idx.register("h1", set("new/*.js"), set("new/out.js"))

	// The hash entry is replaced, but the inverted index is only extended:
	// the entry for the dropped glob lingers.
	assert.NotContains(t, idx.hashGlobs["h1"].Include, "old/*.js")
	_, stale := idx.globStatus["old/*.js"]["h1"]
	assert.True(t, stale, "stale reverse entry expected after re-registration")

	// A change matching the stale glob and the hash's exclude set cleans the
	// stale entry up without disturbing the live registration. The include
	// removal is a no-op, but the reverse index is reconciled.
	idx.register("h1", set("new/*.js"), set("new/out.js", "old/out.js"))
	retired, _ := idx.applyBatch([]string{"old/out.js"})
	require.Len(t, retired, 1)
	assert.NotContains(t, idx.globStatus, "old/*.js")
	assert.Contains(t, idx.hashGlobs, "h1")
	checkInvariants(t, idx)
}

func TestTrackedGlobs(t *testing.T) {
	idx := newTrackingIndex()
	idx.register("h1", set("a/*.js"), nil)
	idx.register("h2", set("a/*.js", "b/**"), nil)

	assert.ElementsMatch(t, []string{"a/*.js", "a/*.js", "b/**"}, idx.trackedGlobs())
}
