package store

import (
	"os"
	"sync"
	"time"
)

// Store is the daemon's shared state. It is thread-safe and supports pub/sub
// so event stream clients see retirements as they happen.
type Store struct {
	mu          sync.RWMutex
	root        string
	startedAt   time.Time
	retirements uint64
	subscribers map[chan Update]struct{}

	// statsFn is polled for the live index counters when building a snapshot.
	statsFn func() (hashes, globs int)
}

// New creates a Store for a daemon rooted at root. statsFn supplies the live
// tracked-hash and tracked-glob counters; nil reports zeros.
func New(root string, statsFn func() (int, int)) *Store {
	if statsFn == nil {
		statsFn = func() (int, int) { return 0, 0 }
	}
	return &Store{
		root:        root,
		startedAt:   time.Now(),
		subscribers: make(map[chan Update]struct{}),
		statsFn:     statsFn,
	}
}

// Status builds a point-in-time snapshot.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes, globs := s.statsFn()
	return Status{
		PID:           uint32(os.Getpid()),
		Root:          s.root,
		StartedAt:     s.startedAt,
		TrackedHashes: hashes,
		TrackedGlobs:  globs,
		Retirements:   s.retirements,
	}
}

// RecordRetirement counts a retired association and notifies subscribers.
func (s *Store) RecordRetirement(hash, glob string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retirements++

	update := Update{
		Type: UpdateRetirement,
		Hash: hash,
		Glob: glob,
	}
	for ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}

// Subscribe creates a new subscription channel for daemon events.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, ch)
	close(ch)
}
