package hashglob

import (
	"github.com/relictools/relic/pkg/glob"
)

// GlobSet holds the glob patterns tracked for one hash. Include lists the
// dependency patterns still considered live; Exclude lists the patterns
// whose match against a changed path is the retirement trigger for the
// hash's include patterns.
type GlobSet struct {
	Include map[string]struct{}
	Exclude map[string]struct{}
}

// Retirement records one (hash, glob) association removed by a change batch.
type Retirement struct {
	Hash string `json:"hash"`
	Glob string `json:"glob"`
}

// trackingIndex is the pair of mutually-indexed maps at the heart of the
// watcher: hashGlobs maps a hash to the globs it still depends on, and
// globStatus is the inverted index from glob to the hashes watching it.
//
// Both maps are owned by the enclosing Watcher and mutated only under its
// mutex; every method leaves the pair consistent (a glob appears in a hash's
// include set iff the hash appears in the glob's status set, and neither map
// holds empty entries). The one deliberate exception is re-registration: see
// register.
type trackingIndex struct {
	hashGlobs  map[string]*GlobSet
	globStatus map[string]map[string]struct{}
}

func newTrackingIndex() *trackingIndex {
	return &trackingIndex{
		hashGlobs:  make(map[string]*GlobSet),
		globStatus: make(map[string]map[string]struct{}),
	}
}

// register records a hash's glob sets. The hash's entry is replaced wholesale,
// while the inverted index is only extended: reverse entries for globs that a
// re-registration dropped are left in place until a matching change retires
// them. Hashes are expected to be registered once per build, so the lingering
// entries are bounded in practice.
func (idx *trackingIndex) register(hash string, include, exclude map[string]struct{}) {
	for pattern := range include {
		hashes, ok := idx.globStatus[pattern]
		if !ok {
			hashes = make(map[string]struct{})
			idx.globStatus[pattern] = hashes
		}
		hashes[hash] = struct{}{}
	}

	idx.hashGlobs[hash] = &GlobSet{Include: include, Exclude: exclude}
}

// trackedGlobs returns every glob currently present in any hash's include set.
func (idx *trackingIndex) trackedGlobs() []string {
	var globs []string
	for _, set := range idx.hashGlobs {
		for pattern := range set.Include {
			globs = append(globs, pattern)
		}
	}
	return globs
}

// stillIncluded returns the subset of candidates present in the hash's
// include set. An unknown hash (never registered, or fully retired) yields
// the candidates unchanged: nothing is known to survive, so nothing can be
// excluded from the answer.
func (idx *trackingIndex) stillIncluded(hash string, candidates []string) []string {
	set, ok := idx.hashGlobs[hash]
	if !ok {
		return candidates
	}
	remaining := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if _, tracked := set.Include[candidate]; tracked {
			remaining = append(remaining, candidate)
		}
	}
	return remaining
}

// applyBatch runs one change batch, given as root-relative paths, against the
// index. For every glob in the inverted index that matches a changed path,
// each watching hash is checked: if the path also matches one of that hash's
// exclude globs, the glob is retired from the hash's include set (deleting
// the hash entirely once its include set empties).
//
// Matches are evaluated against the inverted index as it stood at batch
// start: globStatus is not touched until a second pass, so retiring a glob
// for one hash never affects its evaluation for another in the same batch.
//
// Returns the retirements performed and the distinct globs to unsubscribe
// from the event source, each listed at most once.
func (idx *trackingIndex) applyBatch(relPaths []string) (retired []Retirement, unsubscribe []string) {
	seen := make(map[string]struct{})

	for pattern, hashes := range idx.globStatus {
		for _, rel := range relPaths {
			if !glob.Match(pattern, rel) {
				continue
			}
			for hash := range hashes {
				set, ok := idx.hashGlobs[hash]
				if !ok || !glob.MatchAny(set.Exclude, rel) {
					continue
				}

				// The changed path hit one of the hash's exclude globs, so
				// this include glob no longer needs tracking for the hash.
				delete(set.Include, pattern)
				if len(set.Include) == 0 {
					delete(idx.hashGlobs, hash)
				}

				retired = append(retired, Retirement{Hash: hash, Glob: pattern})
				if _, dup := seen[pattern]; !dup {
					seen[pattern] = struct{}{}
					unsubscribe = append(unsubscribe, pattern)
				}
			}
		}
	}

	// Second pass: bring the inverted index in line with the retirements.
	for _, r := range retired {
		hashes, ok := idx.globStatus[r.Glob]
		if !ok {
			continue
		}
		delete(hashes, r.Hash)
		if len(hashes) == 0 {
			delete(idx.globStatus, r.Glob)
		}
	}

	return retired, unsubscribe
}

// stats reports the current index sizes.
func (idx *trackingIndex) stats() (hashes, globs int) {
	return len(idx.hashGlobs), len(idx.globStatus)
}
