package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relictools/relic/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestComputeSelectsAndSorts(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/b.go", "package b")
	write(t, root, "src/a.go", "package a")
	write(t, root, "src/notes.md", "skip")

	result, err := Compute(root, []string{"src/*.go"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.go", "src/b.go"}, result.Files)
	assert.Len(t, result.Hash, 16)
}

func TestComputeIsDeterministic(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", "one")
	write(t, root, "b.txt", "two")

	first, err := Compute(root, []string{"*.txt"}, nil)
	require.NoError(t, err)
	second, err := Compute(root, []string{"*.txt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestComputeChangesWithContent(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", "one")

	before, err := Compute(root, []string{"*.txt"}, nil)
	require.NoError(t, err)

	write(t, root, "a.txt", "two")
	after, err := Compute(root, []string{"*.txt"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, before.Hash, after.Hash)
}

func TestComputeChangesWithFileSet(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", "one")

	before, err := Compute(root, []string{"*.txt"}, nil)
	require.NoError(t, err)

	write(t, root, "b.txt", "")
	after, err := Compute(root, []string{"*.txt"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, before.Hash, after.Hash)
}

func TestComputeAppliesExcludes(t *testing.T) {
	root := t.TempDir()
	write(t, root, "dist/app.css", "body{}")
	write(t, root, "dist/app.min.css", "body{}")

	result, err := Compute(root, []string{"dist/**"}, []string{"dist/*.min.css"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dist/app.css"}, result.Files)
}

func TestComputeValidatesInput(t *testing.T) {
	_, err := Compute(t.TempDir(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = Compute(t.TempDir(), []string{"[unclosed"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidGlob))
}
