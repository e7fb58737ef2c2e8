// Package store provides the in-memory event store for the relic daemon.
package store

import "time"

// Status is a point-in-time snapshot of the daemon served to clients.
type Status struct {
	PID           uint32    `json:"pid"`
	Root          string    `json:"root"`
	StartedAt     time.Time `json:"startedAt"`
	TrackedHashes int       `json:"trackedHashes"`
	TrackedGlobs  int       `json:"trackedGlobs"`
	Retirements   uint64    `json:"retirements"`
}

// UpdateType defines what kind of event occurred.
type UpdateType string

const (
	UpdateRetirement UpdateType = "retirement"
	UpdateStatus     UpdateType = "status"
)

// Update represents one event delivered to subscribers.
type Update struct {
	Type UpdateType `json:"type"`
	// Hash and Glob identify the retired association for retirement events.
	Hash string `json:"hash,omitempty"`
	Glob string `json:"glob,omitempty"`
	// Status carries the snapshot for status events.
	Status *Status `json:"status,omitempty"`
}
