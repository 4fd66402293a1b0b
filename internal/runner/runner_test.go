package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/processor"
	"github.com/auditpump/auditpump/internal/source"
)

type fetchResult struct {
	page *source.Page
	err  error
}

// fakeSource serves a scripted sequence of fetch results and cancels the
// run when the script is exhausted
type fakeSource struct {
	script  []fetchResult
	cursors []string
	cancel  context.CancelFunc
}

func (f *fakeSource) FetchPage(ctx context.Context, cursor string) (*source.Page, error) {
	if len(f.cursors) >= len(f.script) {
		f.cancel()
		return nil, &source.TransientError{Err: errors.New("script exhausted")}
	}
	f.cursors = append(f.cursors, cursor)
	r := f.script[len(f.cursors)-1]
	return r.page, r.err
}

type fakeAuth struct {
	ensureCalls  int
	refreshCalls int
	ensureErrs   []error
	refreshErr   error
}

func (f *fakeAuth) EnsureValidToken(ctx context.Context) (string, error) {
	f.ensureCalls++
	if len(f.ensureErrs) > 0 {
		err := f.ensureErrs[0]
		f.ensureErrs = f.ensureErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "tok", nil
}

func (f *fakeAuth) RefreshToken(ctx context.Context) (string, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return "tok-fresh", nil
}

type batchCall struct {
	count  int
	cursor string
}

type fakeProcessor struct {
	cursor  string
	dedup   bool
	resets  int
	enables int
	batches []batchCall
	results []processor.Result
}

func (f *fakeProcessor) Cursor() string           { return f.cursor }
func (f *fakeProcessor) NeedsDeduplication() bool { return f.dedup }
func (f *fakeProcessor) ResetDeduplication()      { f.resets++; f.dedup = false }
func (f *fakeProcessor) EnableDeduplication()     { f.enables++; f.dedup = true }

func (f *fakeProcessor) ProcessBatch(ctx context.Context, events []source.Event, cursor string) (processor.Result, error) {
	f.batches = append(f.batches, batchCall{count: len(events), cursor: cursor})
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		return r, nil
	}
	return processor.Result{SavedCount: len(events), FoundLastEvent: true}, nil
}

// fakeWaiter records waits without sleeping
type fakeWaiter struct {
	waits []time.Duration
}

func (f *fakeWaiter) Wait(ctx context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return ctx.Err()
}

func testSettings() *config.Settings {
	return &config.Settings{PollInterval: 30 * time.Second}
}

func run(t *testing.T, script []fetchResult, auth *fakeAuth, proc *fakeProcessor) (*Runner, *fakeSource, *fakeWaiter) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{script: script, cancel: cancel}
	waiter := &fakeWaiter{}

	r := New(testSettings(), auth, src, proc)
	r.SetWaiter(waiter)

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return r, src, waiter
}

func page(n int, next string) *source.Page {
	events := make([]source.Event, n)
	for i := range events {
		events[i] = source.Event{"event_id": "E", "event_saved_time": "T"}
	}
	return &source.Page{Events: events, NextCursor: next}
}

func TestRun_PaginationBurst(t *testing.T) {
	// A page with a next cursor is followed immediately, with the dedup
	// flag reset and no wait in between
	auth := &fakeAuth{}
	proc := &fakeProcessor{cursor: "c0", dedup: true}

	_, src, waiter := run(t, []fetchResult{
		{page: page(3, "c1")},
		{page: page(2, "")},
	}, auth, proc)

	wantCursors := []string{"c0", "c1"}
	if len(src.cursors) != 2 || src.cursors[0] != wantCursors[0] || src.cursors[1] != wantCursors[1] {
		t.Errorf("Fetch cursors = %v, want %v", src.cursors, wantCursors)
	}
	if proc.resets != 1 {
		t.Errorf("ResetDeduplication called %d times, want 1", proc.resets)
	}
	if proc.enables != 1 {
		t.Errorf("EnableDeduplication called %d times, want 1", proc.enables)
	}
	// Only the final caught-up iteration waits
	if len(waiter.waits) != 1 || waiter.waits[0] != 30*time.Second {
		t.Errorf("Waits = %v, want one wait of 30s", waiter.waits)
	}
	if len(proc.batches) != 2 {
		t.Fatalf("ProcessBatch called %d times, want 2", len(proc.batches))
	}
	// Each batch is processed with the cursor it was fetched at, not the
	// next cursor
	if proc.batches[0].cursor != "c0" || proc.batches[1].cursor != "c1" {
		t.Errorf("Batch cursors = %v", proc.batches)
	}
}

func TestRun_CaughtUpIdlesWithSameCursor(t *testing.T) {
	// No next cursor: enable dedup, wait, then re-fetch the same cursor
	auth := &fakeAuth{}
	proc := &fakeProcessor{cursor: "c5"}

	_, src, waiter := run(t, []fetchResult{
		{page: page(0, "")},
		{page: page(0, "")},
	}, auth, proc)

	if len(src.cursors) != 2 || src.cursors[0] != "c5" || src.cursors[1] != "c5" {
		t.Errorf("Cursor must not advance while caught up: %v", src.cursors)
	}
	if proc.enables != 2 {
		t.Errorf("EnableDeduplication called %d times, want 2", proc.enables)
	}
	if len(waiter.waits) != 2 {
		t.Errorf("Expected a wait per idle iteration, got %v", waiter.waits)
	}
}

func TestRun_TokenExpiredRefreshesAndRetries(t *testing.T) {
	// A 401-equivalent triggers an immediate refresh and a retry of the
	// same cursor with no wait
	auth := &fakeAuth{}
	proc := &fakeProcessor{cursor: "c1"}

	_, src, waiter := run(t, []fetchResult{
		{err: source.ErrTokenExpired},
		{page: page(1, "")},
	}, auth, proc)

	if auth.refreshCalls != 1 {
		t.Errorf("RefreshToken called %d times, want 1", auth.refreshCalls)
	}
	if len(src.cursors) != 2 || src.cursors[1] != "c1" {
		t.Errorf("Retry must reuse the same cursor: %v", src.cursors)
	}
	// The expiry path itself must not wait; only the final idle does
	if len(waiter.waits) != 1 {
		t.Errorf("Waits = %v, want exactly the idle wait", waiter.waits)
	}
}

func TestRun_TransientErrorWaitsAndRetries(t *testing.T) {
	auth := &fakeAuth{}
	proc := &fakeProcessor{cursor: "c1"}

	_, src, waiter := run(t, []fetchResult{
		{err: &source.TransientError{Status: 500, Err: errors.New("boom")}},
		{page: page(1, "")},
	}, auth, proc)

	if len(src.cursors) != 2 || src.cursors[1] != "c1" {
		t.Errorf("Retry must reuse the same cursor: %v", src.cursors)
	}
	// One wait for the transient retry, one for the final idle
	if len(waiter.waits) != 2 {
		t.Errorf("Waits = %v, want 2", waiter.waits)
	}
	if auth.refreshCalls != 0 {
		t.Error("Transient errors must not trigger a token refresh")
	}
}

func TestRun_StartupTokenRetry(t *testing.T) {
	// A failing identity API at startup is retried on the flat interval
	// instead of killing the process
	auth := &fakeAuth{ensureErrs: []error{errors.New("identity unavailable"), nil}}
	proc := &fakeProcessor{}

	_, _, waiter := run(t, []fetchResult{
		{page: page(0, "")},
	}, auth, proc)

	if auth.ensureCalls != 2 {
		t.Errorf("EnsureValidToken called %d times, want 2", auth.ensureCalls)
	}
	if len(waiter.waits) < 1 {
		t.Error("Expected a wait between startup token attempts")
	}
}

func TestRun_CancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auth := &fakeAuth{}
	proc := &fakeProcessor{}
	src := &fakeSource{cancel: func() {}}

	r := New(testSettings(), auth, src, proc)
	r.SetWaiter(&fakeWaiter{})

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Cancelled run should return nil, got %v", err)
	}
	if len(src.cursors) != 0 {
		t.Error("No fetch may happen after cancellation")
	}
}

func TestRun_IterationsCounted(t *testing.T) {
	auth := &fakeAuth{}
	proc := &fakeProcessor{}

	r, _, _ := run(t, []fetchResult{
		{page: page(1, "c1")},
		{page: page(1, "")},
	}, auth, proc)

	// Two scripted fetches plus the exhausted-script iteration
	if r.Iterations() < 2 {
		t.Errorf("Iterations() = %d, want at least 2", r.Iterations())
	}
}
