package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoState is returned when a user has no conversation in progress.
var ErrNoState = errors.New("no conversation state")

// State is the per-user conversation record: which flow is active, which
// step it is waiting on, and the values collected so far.
type State struct {
	Flow      string            `json:"flow"`
	Step      string            `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Get returns a collected value or "".
func (s State) Get(key string) string {
	return s.Data[key]
}

// With returns a copy of the state with key set to value.
func (s State) With(key, value string) State {
	data := make(map[string]string, len(s.Data)+1)
	for k, v := range s.Data {
		data[k] = v
	}
	data[key] = value
	s.Data = data
	return s
}

// Store defines the interface for conversation state storage.
// The memory store serves single-instance deployments; the Redis store lets
// several bot instances share conversations.
type Store interface {
	// Get returns the user's state, or ErrNoState.
	Get(ctx context.Context, userID int64) (State, error)

	// Set replaces the user's state and refreshes its expiry.
	Set(ctx context.Context, userID int64, st State) error

	// Clear removes the user's state. Clearing a missing state is not an error.
	Clear(ctx context.Context, userID int64) error

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases background resources.
	Close() error
}
