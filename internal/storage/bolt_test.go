package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *BoltStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := NewBoltStore(&BoltOptions{
		Path: dbPath,
	})

	if err := store.Open(); err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestBoltStore_TokenRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Fresh store has no token
	token, err := store.GetToken(ctx)
	if err != nil {
		t.Fatalf("Failed to get token: %v", err)
	}
	if token != "" {
		t.Errorf("Expected empty token on fresh store, got %q", token)
	}

	if err := store.SetToken(ctx, "tok-123"); err != nil {
		t.Fatalf("Failed to set token: %v", err)
	}

	token, err = store.GetToken(ctx)
	if err != nil {
		t.Fatalf("Failed to get token: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("Token does not match: got %q, want %q", token, "tok-123")
	}

	// Replacing overwrites, no history kept
	if err := store.SetToken(ctx, "tok-456"); err != nil {
		t.Fatalf("Failed to replace token: %v", err)
	}
	token, _ = store.GetToken(ctx)
	if token != "tok-456" {
		t.Errorf("Replaced token does not match: got %q, want %q", token, "tok-456")
	}
}

func TestBoltStore_StateRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Fresh store returns a zero state, not an error
	state, err := store.GetState(ctx)
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	if state.Resumable() {
		t.Error("Fresh state should not be resumable")
	}

	want := EventState{
		EventID:        "E7",
		EventSavedTime: "2024-05-01T10:00:00Z",
		Cursor:         "cursor-abc",
	}
	if err := store.SetState(ctx, want); err != nil {
		t.Fatalf("Failed to set state: %v", err)
	}

	state, err = store.GetState(ctx)
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	if state != want {
		t.Errorf("State does not match: got %+v, want %+v", state, want)
	}
	if !state.Resumable() {
		t.Error("State with event_id and event_saved_time should be resumable")
	}
}

func TestBoltStore_StateSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store := NewBoltStore(&BoltOptions{Path: dbPath})
	if err := store.Open(); err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	want := EventState{EventID: "E1", EventSavedTime: "T1", Cursor: "c1"}
	if err := store.SetState(ctx, want); err != nil {
		t.Fatalf("Failed to set state: %v", err)
	}
	if err := store.SetToken(ctx, "tok"); err != nil {
		t.Fatalf("Failed to set token: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Reopen simulates a process restart
	reopened := NewBoltStore(&BoltOptions{Path: dbPath})
	if err := reopened.Open(); err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	state, err := reopened.GetState(ctx)
	if err != nil {
		t.Fatalf("Failed to get state after reopen: %v", err)
	}
	if state != want {
		t.Errorf("State after reopen does not match: got %+v, want %+v", state, want)
	}
	token, err := reopened.GetToken(ctx)
	if err != nil {
		t.Fatalf("Failed to get token after reopen: %v", err)
	}
	if token != "tok" {
		t.Errorf("Token after reopen does not match: got %q, want %q", token, "tok")
	}
}

func TestEventState_Resumable(t *testing.T) {
	cases := []struct {
		name  string
		state EventState
		want  bool
	}{
		{"empty", EventState{}, false},
		{"id only", EventState{EventID: "E1"}, false},
		{"time only", EventState{EventSavedTime: "T1"}, false},
		{"cursor only", EventState{Cursor: "c1"}, false},
		{"id and time", EventState{EventID: "E1", EventSavedTime: "T1"}, true},
		{"full", EventState{EventID: "E1", EventSavedTime: "T1", Cursor: "c1"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.state.Resumable(); got != tc.want {
				t.Errorf("Resumable() = %v, want %v", got, tc.want)
			}
		})
	}
}
