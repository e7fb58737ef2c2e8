// Package daemon provides a client interface for interacting with the relic
// daemon (relicd). It implements a transparent fallback pattern: if the daemon
// is running, use its socket API; if not, fall back to conservative local
// answers.
package daemon

import (
	"context"

	"github.com/relictools/relic/internal/daemon/store"
)

// Client defines the interface for interacting with the relic daemon.
// Both RemoteClient (socket API) and LocalClient (degraded in-process
// answers) implement this interface.
type Client interface {
	// Track registers a hash with the include and exclude globs that
	// produced it. Changes matching an include glob begin flowing to the
	// daemon before Track returns.
	Track(ctx context.Context, hash string, include, exclude []string) error

	// Changed returns the subset of candidate globs whose files may have
	// changed since the hash was tracked. An untracked hash returns all
	// candidates.
	Changed(ctx context.Context, hash string, candidates []string) ([]string, error)

	// Status returns a snapshot of the daemon state.
	Status(ctx context.Context) (*store.Status, error)

	// Events subscribes to the daemon's event stream. The channel closes
	// when the context is cancelled or the connection is lost. For
	// LocalClient this returns an error since events require the daemon.
	Events(ctx context.Context) (<-chan store.Update, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// TrackRequest is the wire format for Track.
type TrackRequest struct {
	Hash    string   `json:"hash"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude,omitempty"`
}

// ChangedRequest is the wire format for Changed.
type ChangedRequest struct {
	Hash       string   `json:"hash"`
	Candidates []string `json:"candidates"`
}

// ChangedResponse is the wire format for Changed answers.
type ChangedResponse struct {
	Changed []string `json:"changed"`
}
