package hashglob

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/pkg/globwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory event source. Batches pushed into events are
// received by the watch loop in order; Flush round-trips an empty sentinel
// batch through the same unbuffered channel, so it returns only after the
// loop has fully processed everything pushed before it. This is the same
// ordering contract the real source provides.
type fakeSource struct {
	root   string
	events chan globwatch.Batch

	mu       sync.Mutex
	consumed bool
	running  bool
	includes map[string]int
	excludes []string

	includeErr error
	excludeErr error
}

func newFakeSource(root string) *fakeSource {
	return &fakeSource{
		root:     root,
		events:   make(chan globwatch.Batch),
		includes: make(map[string]int),
	}
}

func (s *fakeSource) Root() string { return s.root }

func (s *fakeSource) Include(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.includeErr != nil {
		return s.includeErr
	}
	s.includes[pattern]++
	return nil
}

func (s *fakeSource) Exclude(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.excludeErr != nil {
		return s.excludeErr
	}
	s.excludes = append(s.excludes, pattern)
	return nil
}

func (s *fakeSource) Flush(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		// No consumer yet, nothing can be in flight.
		return nil
	}
	select {
	case s.events <- globwatch.Batch{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSource) Events(ctx context.Context) (<-chan globwatch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return nil, errors.WatchConsumed()
	}
	s.consumed = true
	s.running = true
	return s.events, nil
}

// push delivers a batch of root-relative paths and returns once the watch
// loop has received it.
func (s *fakeSource) push(t *testing.T, rels ...string) {
	t.Helper()
	batch := globwatch.Batch{}
	for _, rel := range rels {
		batch.Paths = append(batch.Paths, filepath.Join(s.root, rel))
	}
	select {
	case s.events <- batch:
	case <-time.After(5 * time.Second):
		t.Error("watch loop did not accept batch")
	}
}

func (s *fakeSource) excludeLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.excludes...)
}

func (s *fakeSource) includeCount(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.includes[pattern]
}

func startWatcher(t *testing.T, source *fakeSource, opts Options) (*Watcher, context.CancelFunc) {
	t.Helper()
	w := New(source, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watch loop did not stop")
		}
	})
	return w, cancel
}

func TestRetirementEndToEnd(t *testing.T) {
	source := newFakeSource("/repo")
	w, _ := startWatcher(t, source, Options{})
	ctx := context.Background()

	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"a/*.js", "b/*.js"}, []string{"a/out.js"}))
	assert.Equal(t, 1, source.includeCount("a/*.js"))

	// Matches an include glob but no exclude glob: nothing retires.
	source.push(t, "a/other.js")
	remaining, err := w.ChangedGlobs(ctx, "h1", []string{"a/*.js", "b/*.js"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/*.js", "b/*.js"}, remaining)

	// Matches both: the association retires.
	source.push(t, "a/out.js")
	remaining, err = w.ChangedGlobs(ctx, "h1", []string{"a/*.js", "b/*.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b/*.js"}, remaining)
	assert.Equal(t, []string{"a/*.js"}, source.excludeLog())
}

func TestFlushOrderingBeforeQuery(t *testing.T) {
	source := newFakeSource("/repo")
	w, _ := startWatcher(t, source, Options{})
	ctx := context.Background()

	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"dist/*.css", "src/*.ts"}, []string{"dist/app.css"}))

	// The query's flush must force the just-delivered change to be
	// reconciled before the answer is computed.
	source.push(t, "dist/app.css")
	remaining, err := w.ChangedGlobs(ctx, "h1", []string{"dist/*.css", "src/*.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/*.ts"}, remaining)
}

func TestUnknownHashReturnsCandidates(t *testing.T) {
	source := newFakeSource("/repo")
	w, _ := startWatcher(t, source, Options{})

	remaining, err := w.ChangedGlobs(context.Background(), "missing", []string{"a/*.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/*.js"}, remaining)
}

func TestFullyRetiredHashNoLongerTracked(t *testing.T) {
	source := newFakeSource("/repo")
	w, _ := startWatcher(t, source, Options{})
	ctx := context.Background()

	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"dist/*.css"}, []string{"dist/*.css"}))
	source.push(t, "dist/app.css")

	// Flush so the batch has been fully reconciled before inspecting.
	_, err := w.ChangedGlobs(ctx, "settle", nil)
	require.NoError(t, err)

	hashes, globs := w.Stats()
	assert.Zero(t, hashes+globs)

	// Unknown again: the full candidate set comes back unchanged.
	remaining, err := w.ChangedGlobs(ctx, "h1", []string{"dist/*.css"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dist/*.css"}, remaining)
}

func TestPathsOutsideRootDiscarded(t *testing.T) {
	source := newFakeSource("/repo")
	w, _ := startWatcher(t, source, Options{})
	ctx := context.Background()

	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"a/*.js"}, []string{"a/out.js"}))

	select {
	case source.events <- globwatch.Batch{Paths: []string{"/elsewhere/a/out.js"}}:
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not accept batch")
	}

	remaining, err := w.ChangedGlobs(ctx, "h1", []string{"a/*.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/*.js"}, remaining)
}

func TestSharedGlobUnsubscribedPerRetirement(t *testing.T) {
	source := newFakeSource("/repo")
	w, _ := startWatcher(t, source, Options{})
	ctx := context.Background()

	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"dist/*.css"}, []string{"dist/one.css"}))
	require.NoError(t, w.WatchGlobs(ctx, "h2", []string{"dist/*.css"}, []string{"dist/two.css"}))
	assert.Equal(t, 2, source.includeCount("dist/*.css"))

	settle := func() {
		_, err := w.ChangedGlobs(ctx, "settle", nil)
		require.NoError(t, err)
	}

	source.push(t, "dist/one.css")
	settle()
	assert.Equal(t, []string{"dist/*.css"}, source.excludeLog())

	source.push(t, "dist/two.css")
	settle()
	assert.Equal(t, []string{"dist/*.css", "dist/*.css"}, source.excludeLog())

	// With reference-counted subscriptions on the source side, the two
	// excludes balance the two includes only after both hashes retired.
	hashes, globs := w.Stats()
	assert.Zero(t, hashes+globs)
}

func TestStartupIncludesTrackedGlobs(t *testing.T) {
	source := newFakeSource("/repo")
	w := New(source, Options{})
	ctx := context.Background()

	// Registered before the session starts; Flush is a no-op until then.
	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"a/*.js"}, nil))
	assert.Equal(t, 1, source.includeCount("a/*.js"))

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(runCtx) }()

	require.Eventually(t, func() bool {
		return source.includeCount("a/*.js") == 2
	}, 5*time.Second, 10*time.Millisecond, "startup should re-include tracked globs")

	cancel()
	require.NoError(t, <-done)
}

func TestWatchConsumedTwice(t *testing.T) {
	source := newFakeSource("/repo")
	startWatcher(t, source, Options{})

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.consumed
	}, 5*time.Second, 10*time.Millisecond, "first watcher should consume the event stream")

	other := New(source, Options{})
	err := other.Watch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeWatchConsumed))
}

func TestControlSendFailureIsFatal(t *testing.T) {
	source := newFakeSource("/repo")
	w := New(source, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"a/*.js"}, []string{"a/out.js"}))

	source.mu.Lock()
	source.excludeErr = fmt.Errorf("pipe closed")
	source.mu.Unlock()

	source.push(t, "a/out.js")

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCodeControlSend))
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop should terminate on control send failure")
	}
}

func TestOnRetireCallback(t *testing.T) {
	source := newFakeSource("/repo")

	var mu sync.Mutex
	var seen []Retirement
	w, _ := startWatcher(t, source, Options{OnRetire: func(r Retirement) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	}})
	ctx := context.Background()

	require.NoError(t, w.WatchGlobs(ctx, "h1", []string{"a/*.js"}, []string{"a/out.js"}))
	source.push(t, "a/out.js")

	// Flush to make sure the batch (and its callbacks) completed.
	_, err := w.ChangedGlobs(ctx, "h1", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Retirement{{Hash: "h1", Glob: "a/*.js"}}, seen)
}

func TestConcurrentRegistrationSafety(t *testing.T) {
	source := newFakeSource("/repo")
	w, _ := startWatcher(t, source, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hash := fmt.Sprintf("h%d-%d", i, j)
				include := []string{fmt.Sprintf("pkg%d/*.go", i), "shared/**"}
				exclude := []string{fmt.Sprintf("pkg%d/gen.go", i)}
				if err := w.WatchGlobs(ctx, hash, include, exclude); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}

	// Interleave change batches while registrations are in flight.
	donePushing := make(chan struct{})
	go func() {
		defer close(donePushing)
		for k := 0; k < 40; k++ {
			source.push(t, fmt.Sprintf("pkg%d/gen.go", k%8))
		}
	}()

	wg.Wait()
	<-donePushing

	// Settle, then verify bidirectional consistency of the index.
	_, err := w.ChangedGlobs(ctx, "absent", nil)
	require.NoError(t, err)

	w.mu.Lock()
	defer w.mu.Unlock()
	checkInvariants(t, w.index)
}

func TestWatchGlobsValidation(t *testing.T) {
	source := newFakeSource("/repo")
	w := New(source, Options{})

	err := w.WatchGlobs(context.Background(), "", []string{"a/*.js"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
