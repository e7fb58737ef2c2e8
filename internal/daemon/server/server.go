// Package server provides the HTTP server for the relic daemon.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"
	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/internal/daemon/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Tracker is the daemon-side surface of the invalidation index.
type Tracker interface {
	WatchGlobs(ctx context.Context, hash string, include, exclude []string) error
	ChangedGlobs(ctx context.Context, hash string, candidates []string) ([]string, error)
}

// trackRequest matches the daemon.TrackRequest wire type.
type trackRequest struct {
	Hash    string   `json:"hash"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude,omitempty"`
}

// changedRequest matches the daemon.ChangedRequest wire type.
type changedRequest struct {
	Hash       string   `json:"hash"`
	Candidates []string `json:"candidates"`
}

type changedResponse struct {
	Changed []string `json:"changed"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger  *logrus.Entry
	server  *http.Server
	tracker Tracker
	store   *store.Store

	upgrader websocket.Upgrader
}

// New creates a new Server instance.
func New(logger *logrus.Entry, tracker Tracker, st *store.Store) *Server {
	return &Server{
		logger:  logger,
		tracker: tracker,
		store:   st,
	}
}

// Handler builds the daemon's request mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/track", s.handleTrack)
	mux.HandleFunc("/api/changed", s.handleChanged)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/events", s.handleEvents)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return errors.Wrap(err, errors.ErrCodeSocketUnusable, "failed to remove stale socket").
				WithDetail("socket", socketPath)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeSocketUnusable, "failed to create socket directory").
			WithDetail("socket", socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSocketUnusable, "failed to listen on socket").
			WithDetail("socket", socketPath)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return errors.Wrap(err, errors.ErrCodeSocketUnusable, "failed to set socket permissions").
			WithDetail("socket", socketPath)
	}

	s.server = &http.Server{
		Handler: s.Handler(),
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	err = s.server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleTrack registers a hash with its include and exclude globs.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	if err := s.tracker.WatchGlobs(r.Context(), req.Hash, req.Include, req.Exclude); err != nil {
		writeError(w, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"hash":  req.Hash,
		"globs": len(req.Include),
	}).Debug("Tracking hash")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"hash": req.Hash})
}

// handleChanged answers which of the candidate globs may have changed files.
func (s *Server) handleChanged(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req changedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	changed, err := s.tracker.ChangedGlobs(r.Context(), req.Hash, req.Candidates)
	if err != nil {
		writeError(w, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(changedResponse{Changed: changed})
}

// handleStatus returns a snapshot of the daemon state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.store.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleEvents streams retirement events over a websocket.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	s.logger.Debug("Event stream client connected")

	// Reader goroutine so client-initiated close is noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			s.logger.Debug("Event stream client disconnected")
			return
		case update := <-ch:
			if err := conn.WriteJSON(update); err != nil {
				s.logger.WithError(err).Debug("Failed to write event")
				return
			}
		}
	}
}

// writeError maps a structured error to an HTTP response.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidGlob:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeWatchConsumed, errors.ErrCodeWatchClosed:
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if relicErr, ok := err.(*errors.RelicError); ok {
		w.Write([]byte(relicErr.ToJSON()))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
}
