package daemon

import (
	"context"

	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/internal/daemon/store"
	"github.com/relictools/relic/pkg/paths"
)

// LocalClient implements Client when the daemon is not running. Without a
// daemon there is no change tracking, so it degrades conservatively: every
// candidate glob is reported as possibly changed, and registration fails so
// callers know tracking is unavailable.
type LocalClient struct{}

// NewLocalClient creates a new LocalClient.
func NewLocalClient() *LocalClient {
	return &LocalClient{}
}

// Track fails since registration requires a running daemon.
func (c *LocalClient) Track(ctx context.Context, hash string, include, exclude []string) error {
	return errors.DaemonNotRunning(paths.SocketPath())
}

// Changed reports every candidate as possibly changed. With nobody watching
// the filesystem this is the only safe answer.
func (c *LocalClient) Changed(ctx context.Context, hash string, candidates []string) ([]string, error) {
	return candidates, nil
}

// Status fails since there is no daemon to report on.
func (c *LocalClient) Status(ctx context.Context) (*store.Status, error) {
	return nil, errors.DaemonNotRunning(paths.SocketPath())
}

// Events fails since the event stream is only available via the daemon.
func (c *LocalClient) Events(ctx context.Context) (<-chan store.Update, error) {
	return nil, errors.DaemonNotRunning(paths.SocketPath())
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
