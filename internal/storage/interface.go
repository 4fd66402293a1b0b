package storage

import "context"

// EventState is the durable resume marker: the identity of the last event
// handed to the sink plus the pagination cursor to fetch from next.
type EventState struct {
	EventID        string `json:"event_id,omitempty"`
	EventSavedTime string `json:"event_saved_time,omitempty"`
	Cursor         string `json:"cursor,omitempty"`
}

// Resumable reports whether the state carries enough information to
// deduplicate against a previously delivered event. A state holding only a
// cursor is not resumable, though the cursor is still used to choose where
// the next fetch starts.
func (s EventState) Resumable() bool {
	return s.EventID != "" && s.EventSavedTime != ""
}

// Store defines the interface for persistent poller state: the current auth
// token and the resume marker. Implementations must make writes durable
// before returning.
type Store interface {
	// Open initializes the storage and makes it ready for use
	Open() error

	// Close closes the storage and releases any resources
	Close() error

	// GetToken returns the persisted auth token, or "" when none is stored
	GetToken(ctx context.Context) (string, error)

	// SetToken persists the auth token, replacing any previous one
	SetToken(ctx context.Context, token string) error

	// GetState returns the persisted resume marker, or a zero EventState
	// when none is stored
	GetState(ctx context.Context) (EventState, error)

	// SetState persists the resume marker
	SetState(ctx context.Context, state EventState) error
}
