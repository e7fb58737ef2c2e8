package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/internal/daemon/store"
)

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// RemoteClient implements Client by calling the daemon's HTTP API over a
// Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a new RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	// Create HTTP client that dials Unix socket
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}

	return &RemoteClient{
		httpClient: client,
		socketPath: socketPath,
	}, nil
}

// Track registers a hash with the daemon's invalidation index.
func (c *RemoteClient) Track(ctx context.Context, hash string, include, exclude []string) error {
	_, err := c.post(ctx, "/api/track", TrackRequest{
		Hash:    hash,
		Include: include,
		Exclude: exclude,
	})
	return err
}

// Changed asks the daemon which candidate globs may have changed files.
func (c *RemoteClient) Changed(ctx context.Context, hash string, candidates []string) ([]string, error) {
	body, err := c.post(ctx, "/api/changed", ChangedRequest{
		Hash:       hash,
		Candidates: candidates,
	})
	if err != nil {
		return nil, err
	}

	var out ChangedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode daemon response")
	}
	return out.Changed, nil
}

// Status returns a snapshot of the daemon state.
func (c *RemoteClient) Status(ctx context.Context) (*store.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.DaemonNotRunning(c.socketPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var status store.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode daemon status")
	}
	return &status, nil
}

// Events subscribes to the daemon's event stream over a websocket.
func (c *RemoteClient) Events(ctx context.Context) (<-chan store.Update, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}

	conn, resp, err := dialer.DialContext(ctx, "ws://unix/api/events", nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "failed to connect to event stream").
			WithDetail("socket", c.socketPath)
	}

	ch := make(chan store.Update, 10)

	go func() {
		defer close(ch)
		defer conn.Close()

		for {
			var update store.Update
			if err := conn.ReadJSON(&update); err != nil {
				return
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return ch, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *RemoteClient) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.DaemonNotRunning(c.socketPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// decodeError converts a non-200 daemon response back into a structured
// error, preserving the code the server reported where possible.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var relicErr errors.RelicError
	if err := json.Unmarshal(body, &relicErr); err == nil && relicErr.Code != "" {
		return &relicErr
	}
	return errors.New(errors.ErrCodeInternal, "daemon request failed").
		WithDetail("status", resp.StatusCode)
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
