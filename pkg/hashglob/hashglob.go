// Package hashglob maintains the live invalidation index of the build cache.
//
// A hash identifies a previously computed build result. Each hash is
// registered with the glob patterns it depends on; the watcher consumes the
// filesystem event stream and retires (hash, glob) associations the moment a
// qualifying change arrives, so cache-validity queries are map lookups
// rather than filesystem scans.
//
// Retirement direction: a changed path selects candidate hashes through the
// include glob it matches, but the association is retired only if the path
// also matches one of the hash's exclude globs. Exclude here is the trigger
// condition, not a negative filter.
//
// Concurrency: one goroutine runs Watch; WatchGlobs and ChangedGlobs may be
// called from any goroutine. Both maps of the index live behind a single
// mutex and are only ever updated together. The flush protocol of the event
// source gives queries a strict ordering guarantee: every change observed
// before the query call is reflected in the answer.
package hashglob

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/logging"
	"github.com/relictools/relic/pkg/globwatch"
	"github.com/sirupsen/logrus"
)

// Controller sends subscription control messages to the event source.
type Controller interface {
	Include(ctx context.Context, pattern string) error
	Exclude(ctx context.Context, pattern string) error
	Flush(ctx context.Context) error
}

// Source is the full event-source boundary: control operations plus the
// one-shot batch stream, rooted at a watch directory.
type Source interface {
	Controller
	Events(ctx context.Context) (<-chan globwatch.Batch, error)
	Root() string
}

// Options configures a Watcher.
type Options struct {
	// Logger receives diagnostics. Defaults to the "hashglob" component.
	Logger *logrus.Entry

	// OnRetire, if set, is called for every retired (hash, glob)
	// association, outside the index lock.
	OnRetire func(Retirement)
}

// Watcher tracks changes for registered hashes against an event source.
type Watcher struct {
	source   Source
	logger   *logrus.Entry
	onRetire func(Retirement)

	mu    sync.Mutex
	index *trackingIndex
}

// New creates a Watcher over the given event source.
func New(source Source, opts Options) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("hashglob")
	}
	return &Watcher{
		source:   source,
		logger:   logger,
		onRetire: opts.OnRetire,
		index:    newTrackingIndex(),
	}
}

// Watch runs the reconciliation loop until ctx is cancelled or the session
// fails. It first re-subscribes every glob already tracked, then applies
// each change batch to the index and unsubscribes globs nobody tracks
// anymore.
//
// The event stream is consumed exactly once; a second Watch call against the
// same source returns a WATCH_CONSUMED error. A failed control send is fatal
// to the session: without it the source's subscriptions would silently
// diverge from the index.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	startGlobs := w.index.trackedGlobs()
	w.mu.Unlock()

	events, err := w.source.Events(ctx)
	if err != nil {
		return err
	}

	// Subscribe globs registered before the session started so their events
	// begin flowing before the first batch is consumed.
	for _, pattern := range startGlobs {
		if err := w.source.Include(ctx, pattern); err != nil {
			return errors.ControlSend("include", pattern, err)
		}
	}

	root := w.source.Root()
	for {
		select {
		case <-ctx.Done():
			// Cooperative stop between batches; the index stays consistent.
			return nil
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if err := w.reconcile(ctx, root, batch); err != nil {
				return err
			}
		}
	}
}

// reconcile applies a single change batch to the index.
func (w *Watcher) reconcile(ctx context.Context, root string, batch globwatch.Batch) error {
	if len(batch.Paths) == 0 {
		// Flush sentinel; receiving it is all that matters.
		return nil
	}

	relPaths := make([]string, 0, len(batch.Paths))
	for _, path := range batch.Paths {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			// Outside the watched root (or unrepresentable): skip, keep going.
			w.logger.WithField("path", path).Debug("discarding path outside watch root")
			continue
		}
		relPaths = append(relPaths, rel)
	}
	if len(relPaths) == 0 {
		return nil
	}

	w.mu.Lock()
	retired, unsubscribe := w.index.applyBatch(relPaths)
	w.mu.Unlock()

	// Control I/O only after the lock is dropped.
	for _, pattern := range unsubscribe {
		if err := w.source.Exclude(ctx, pattern); err != nil {
			return errors.ControlSend("exclude", pattern, err)
		}
	}

	for _, r := range retired {
		w.logger.WithFields(logrus.Fields{"hash": r.Hash, "glob": r.Glob}).Debug("retired")
		if w.onRetire != nil {
			w.onRetire(r)
		}
	}
	return nil
}

// WatchGlobs registers a hash with the globs it depends on. The flush at the
// start guarantees that a change which happened before this call can never
// be attributed to the freshly registered hash. Re-registering a hash
// replaces its glob sets.
func (w *Watcher) WatchGlobs(ctx context.Context, hash string, include, exclude []string) error {
	if hash == "" {
		return errors.New(errors.ErrCodeInvalidInput, "hash must not be empty")
	}

	if err := w.source.Flush(ctx); err != nil {
		return errors.ControlSend("flush", "", err)
	}

	for _, pattern := range include {
		if err := w.source.Include(ctx, pattern); err != nil {
			return errors.ControlSend("include", pattern, err)
		}
	}

	w.mu.Lock()
	w.index.register(hash, toSet(include), toSet(exclude))
	w.mu.Unlock()
	return nil
}

// ChangedGlobs returns the subset of candidates still present in the hash's
// include set. The preceding flush makes the answer reflect every change
// that occurred strictly before the call. An unknown hash (never registered,
// or fully retired) returns the candidates unchanged.
func (w *Watcher) ChangedGlobs(ctx context.Context, hash string, candidates []string) ([]string, error) {
	if err := w.source.Flush(ctx); err != nil {
		return nil, errors.ControlSend("flush", "", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index.stillIncluded(hash, candidates), nil
}

// Stats reports the number of tracked hashes and globs.
func (w *Watcher) Stats() (hashes, globs int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index.stats()
}

func toSet(patterns []string) map[string]struct{} {
	set := make(map[string]struct{}, len(patterns))
	for _, pattern := range patterns {
		set[pattern] = struct{}{}
	}
	return set
}
