// Package globwatch is the filesystem event source for the invalidation index.
//
// It wraps fsnotify with three control operations and one data stream:
//
//   - Include(glob) / Exclude(glob): reference-counted subscriptions that
//     scope which root-relative paths are reported. A path is reported iff
//     some glob with a positive count matches it.
//   - Flush(): an ordering barrier. A cookie file is written into a watched
//     cookie directory; because the OS delivers its event after every event
//     that preceded it, the flush completes only once all earlier changes
//     have been handed to the consumer.
//   - Events(ctx): the one-time batch stream. Raw events are coalesced over
//     a short debounce window into batches of absolute paths.
//
// Delivery contract: the batch channel is unbuffered. A consumer that fully
// processes each batch between receives therefore observes every pre-flush
// batch before the corresponding Flush call returns, which is what makes
// queries against the index linearizable with respect to filesystem state.
package globwatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/moby/patternmatcher"
	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/logging"
	"github.com/relictools/relic/pkg/glob"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 10 * time.Millisecond

// defaultIgnores are never reported regardless of subscriptions. They cover
// VCS metadata and dependency caches that generate high-frequency noise.
var defaultIgnores = []string{
	"**/.git",
	"**/.hg",
	"**/.svn",
	"**/node_modules",
	"**/.DS_Store",
}

// Batch is one delivered set of changed absolute paths. A flush barrier is
// delivered as an empty batch; consumers can skip it, receiving it is enough.
type Batch struct {
	Paths []string
}

// Options configures a Watcher.
type Options struct {
	// CookieDir is the directory used for flush cookies. It must not be
	// inside the watched root. Defaults to a per-session temp directory.
	CookieDir string

	// Debounce is the window over which raw events are coalesced into one
	// batch. Zero or negative values fall back to the default.
	Debounce time.Duration

	// Ignore lists additional dockerignore-style patterns that are never
	// reported, merged with the built-in defaults.
	Ignore []string

	// Logger receives diagnostics. Defaults to the "globwatch" component.
	Logger *logrus.Entry
}

// Watcher watches a root directory and delivers subscription-scoped change
// batches. The event stream is session-scoped: Events may be consumed once.
type Watcher struct {
	fsw       *fsnotify.Watcher
	root      string
	cookieDir string
	debounce  time.Duration
	ignore    *patternmatcher.PatternMatcher
	logger    *logrus.Entry

	mu            sync.Mutex
	subscriptions map[string]int
	flushes       map[string]chan struct{}

	out      chan Batch
	done     chan struct{}
	consumed atomic.Bool
	closed   atomic.Bool
}

// New creates a Watcher rooted at root. It registers every non-ignored
// directory under root plus the cookie directory with fsnotify.
func New(root string, opts Options) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to resolve watch root").
			WithDetail("root", root)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("globwatch")
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	cookieDir := opts.CookieDir
	if cookieDir == "" {
		cookieDir, err = os.MkdirTemp("", "relic-cookies-")
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create cookie directory")
		}
	} else if err := os.MkdirAll(cookieDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create cookie directory").
			WithDetail("path", cookieDir)
	}

	ignore, err := patternmatcher.New(append(append([]string{}, defaultIgnores...), opts.Ignore...))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid ignore pattern")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		fsw:           fsw,
		root:          absRoot,
		cookieDir:     cookieDir,
		debounce:      debounce,
		ignore:        ignore,
		logger:        logger,
		subscriptions: make(map[string]int),
		flushes:       make(map[string]chan struct{}),
		out:           make(chan Batch),
		done:          make(chan struct{}),
	}

	if err := w.addDirectories(); err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(cookieDir); err != nil {
		fsw.Close()
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to watch cookie directory").
			WithDetail("path", cookieDir)
	}

	return w, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string {
	return w.root
}

// Include begins reporting changes matching the given glob. Subscriptions
// are reference-counted: including the same glob twice requires two excludes
// before reporting stops.
func (w *Watcher) Include(ctx context.Context, pattern string) error {
	if err := w.checkOpen(ctx); err != nil {
		return err
	}
	w.mu.Lock()
	w.subscriptions[pattern]++
	w.mu.Unlock()
	w.logger.WithField("glob", pattern).Trace("include")
	return nil
}

// Exclude decrements the subscription count for the given glob, stopping
// reports once the count reaches zero.
func (w *Watcher) Exclude(ctx context.Context, pattern string) error {
	if err := w.checkOpen(ctx); err != nil {
		return err
	}
	w.mu.Lock()
	if count, ok := w.subscriptions[pattern]; ok {
		if count <= 1 {
			delete(w.subscriptions, pattern)
		} else {
			w.subscriptions[pattern] = count - 1
		}
	}
	w.mu.Unlock()
	w.logger.WithField("glob", pattern).Trace("exclude")
	return nil
}

// Flush blocks until every filesystem change observed before the call has
// been delivered on the event stream. No internal timeout is applied; pass a
// bounded ctx if bounded latency is required.
func (w *Watcher) Flush(ctx context.Context) error {
	if err := w.checkOpen(ctx); err != nil {
		return err
	}

	name := uuid.NewString() + ".cookie"
	ack := make(chan struct{})

	w.mu.Lock()
	w.flushes[name] = ack
	w.mu.Unlock()

	cookiePath := filepath.Join(w.cookieDir, name)
	if err := os.WriteFile(cookiePath, nil, 0644); err != nil {
		w.mu.Lock()
		delete(w.flushes, name)
		w.mu.Unlock()
		return errors.Wrap(err, errors.ErrCodeControlSend, "failed to write flush cookie").
			WithDetail("path", cookiePath)
	}
	defer os.Remove(cookiePath)

	select {
	case <-ack:
		return nil
	case <-w.done:
		return errors.New(errors.ErrCodeWatchClosed, "watch session closed during flush")
	case <-ctx.Done():
		w.mu.Lock()
		delete(w.flushes, name)
		w.mu.Unlock()
		return ctx.Err()
	}
}

// Events starts event delivery and returns the batch stream. The stream is
// one-shot: a second call returns an error. The stream closes when ctx is
// cancelled or the watcher fails fatally.
func (w *Watcher) Events(ctx context.Context) (<-chan Batch, error) {
	if w.closed.Load() {
		return nil, errors.New(errors.ErrCodeWatchClosed, "watch session closed")
	}
	if !w.consumed.CompareAndSwap(false, true) {
		return nil, errors.WatchConsumed()
	}
	go w.run(ctx)
	return w.out, nil
}

// Close releases the underlying fsnotify resources. Safe to call more than
// once; pending Flush calls fail with WATCH_CLOSED.
func (w *Watcher) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !w.consumed.Load() {
		// run() never started, so nothing else will signal done.
		close(w.done)
	}
	return w.fsw.Close()
}

func (w *Watcher) checkOpen(ctx context.Context) error {
	select {
	case <-w.done:
		return errors.New(errors.ErrCodeWatchClosed, "watch session closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// run is the delivery loop. It owns batching, flush barriers, and directory
// auto-registration. Runs until ctx is cancelled or fsnotify fails.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.out)
	defer close(w.done)

	pending := make(map[string]struct{})
	var timerC <-chan time.Time
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	emit := func() bool {
		if len(pending) == 0 {
			return true
		}
		batch := Batch{Paths: make([]string, 0, len(pending))}
		for path := range pending {
			batch.Paths = append(batch.Paths, path)
		}
		clear(pending)
		select {
		case w.out <- batch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-w.fsw.Events:
			if !ok {
				w.logger.Warn("fsnotify event channel closed")
				return
			}

			if strings.HasPrefix(evt.Name, w.cookieDir+string(filepath.Separator)) {
				if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
					continue
				}
				// Barrier: everything observed before the cookie must reach
				// the consumer before the flush is acknowledged. The empty
				// batch send completes only once the consumer has picked it
				// up, so the preceding batch has been fully handled.
				if !emit() {
					return
				}
				select {
				case w.out <- Batch{}:
				case <-ctx.Done():
					return
				}
				name := filepath.Base(evt.Name)
				w.mu.Lock()
				ack := w.flushes[name]
				delete(w.flushes, name)
				w.mu.Unlock()
				if ack != nil {
					close(ack)
				}
				continue
			}

			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			if w.isIgnored(rel) || !w.isSubscribed(rel) {
				continue
			}

			pending[evt.Name] = struct{}{}
			if timerC == nil {
				timer.Reset(w.debounce)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			if !emit() {
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.logger.Warn("fsnotify error channel closed")
				return
			}
			w.logger.WithError(err).Warn("fsnotify error")
		}
	}
}

// addDirectories walks the root and registers every non-ignored directory.
func (w *Watcher) addDirectories() error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Permission errors on individual directories are common; skip
			// rather than refusing to watch anything.
			w.logger.WithError(walkErr).WithField("path", path).Debug("skipping inaccessible path")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if rel != "." && w.isIgnored(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to watch directory").
				WithDetail("path", path)
		}
		return nil
	})
}

// maybeAddDir registers a newly created directory so recursive coverage
// extends to directories created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") || w.isIgnored(rel) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("failed to watch new directory")
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	matched, err := w.ignore.MatchesOrParentMatches(filepath.ToSlash(rel))
	return err == nil && matched
}

// isSubscribed reports whether any glob with a positive count matches rel.
func (w *Watcher) isSubscribed(rel string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for pattern := range w.subscriptions {
		if glob.Match(pattern, rel) {
			return true
		}
	}
	return false
}
