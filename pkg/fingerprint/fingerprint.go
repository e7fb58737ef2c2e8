// Package fingerprint computes content fingerprints for glob-selected file
// sets. A fingerprint covers both which files matched and what they contain,
// so adding, removing, renaming, or editing a matched file all change it.
package fingerprint

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/pkg/glob"
)

// Result describes one computed fingerprint.
type Result struct {
	Hash  string   `json:"hash"`
	Files []string `json:"files"`
}

// Compute expands the include globs under root, removes files matched by any
// exclude glob, and hashes the sorted root-relative paths together with the
// file contents. Paths use forward slashes regardless of platform so the
// fingerprint is stable across machines.
func Compute(root string, include, exclude []string) (*Result, error) {
	if len(include) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "at least one include glob is required")
	}
	if err := glob.Validate(append(append([]string{}, include...), exclude...)...); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to resolve root").
			WithDetail("root", root)
	}

	files, err := expand(absRoot, include, exclude)
	if err != nil {
		return nil, err
	}

	digest := xxhash.New()
	for _, rel := range files {
		// Path first, then content, with NUL separators so boundaries
		// between entries are unambiguous.
		digest.WriteString(rel)
		digest.Write([]byte{0})
		if err := hashContents(digest, filepath.Join(absRoot, filepath.FromSlash(rel))); err != nil {
			return nil, err
		}
		digest.Write([]byte{0})
	}

	return &Result{
		Hash:  formatHash(digest.Sum64()),
		Files: files,
	}, nil
}

func expand(absRoot string, include, exclude []string) ([]string, error) {
	matched := make(map[string]struct{})
	rootFS := os.DirFS(absRoot)

	for _, pattern := range include {
		err := doublestar.GlobWalk(rootFS, pattern, func(path string, d fs.DirEntry) error {
			if d.IsDir() {
				return nil
			}
			matched[path] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "glob expansion failed").
				WithDetail("glob", pattern)
		}
	}

	files := make([]string, 0, len(matched))
	for rel := range matched {
		if excluded(exclude, rel) {
			continue
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files, nil
}

func excluded(exclude []string, rel string) bool {
	for _, pattern := range exclude {
		if glob.Match(pattern, rel) {
			return true
		}
	}
	return false
}

func hashContents(digest *xxhash.Digest, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to read file for fingerprint").
			WithDetail("path", path)
	}
	defer f.Close()
	if _, err := io.Copy(digest, f); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to hash file contents").
			WithDetail("path", path)
	}
	return nil
}

func formatHash(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
