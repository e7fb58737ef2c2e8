package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusSnapshot(t *testing.T) {
	s := New("/repo", func() (int, int) { return 2, 5 })
	s.RecordRetirement("h1", "dist/**")

	status := s.Status()
	assert.Equal(t, "/repo", status.Root)
	assert.Equal(t, 2, status.TrackedHashes)
	assert.Equal(t, 5, status.TrackedGlobs)
	assert.Equal(t, uint64(1), status.Retirements)
	assert.False(t, status.StartedAt.IsZero())
}

func TestSubscribersReceiveRetirements(t *testing.T) {
	s := New("/repo", nil)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.RecordRetirement("h1", "a/*.js")

	select {
	case update := <-ch:
		assert.Equal(t, UpdateRetirement, update.Type)
		assert.Equal(t, "h1", update.Hash)
		assert.Equal(t, "a/*.js", update.Glob)
	default:
		t.Fatal("expected a buffered update")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New("/repo", nil)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	// Overflow the buffer; RecordRetirement must not stall.
	for i := 0; i < 250; i++ {
		s.RecordRetirement("h", "g")
	}
	require.Equal(t, uint64(250), s.Status().Retirements)
}
