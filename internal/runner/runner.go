package runner

import (
	"context"
	"errors"

	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/processor"
	"github.com/auditpump/auditpump/internal/source"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// markerMissWarnThreshold is the number of consecutive batches without the
// resume marker before the condition is escalated to error level. Purely an
// operational signal; the loop never mutates state in response.
const markerMissWarnThreshold = 3

// AuthProvider supplies and refreshes the auth token
type AuthProvider interface {
	EnsureValidToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
}

// LogSource fetches one page of audit-log events for a given cursor
type LogSource interface {
	FetchPage(ctx context.Context, cursor string) (*source.Page, error)
}

// BatchProcessor is the dedup/resume engine consulted per fetched batch
type BatchProcessor interface {
	Cursor() string
	NeedsDeduplication() bool
	ResetDeduplication()
	EnableDeduplication()
	ProcessBatch(ctx context.Context, events []source.Event, cursor string) (processor.Result, error)
}

// Runner drives the poll loop: ensure token, fetch a page, run the dedup
// engine, then either advance the cursor immediately (more pages) or idle
// for the poll interval (caught up). It terminates only on cancellation.
type Runner struct {
	settings   *config.Settings
	auth       AuthProvider
	source     LogSource
	processor  BatchProcessor
	waiter     Waiter
	iterations uint64
}

// New creates a runner with the production waiter
func New(settings *config.Settings, auth AuthProvider, src LogSource, proc BatchProcessor) *Runner {
	return &Runner{
		settings:  settings,
		auth:      auth,
		source:    src,
		processor: proc,
		waiter:    SleepWaiter{},
	}
}

// SetWaiter replaces the waiter, for tests
func (r *Runner) SetWaiter(w Waiter) {
	r.waiter = w
}

// Iterations returns the number of completed loop iterations
func (r *Runner) Iterations() uint64 {
	return r.iterations
}

// Run executes the poll loop until ctx is canceled. Transient and auth
// failures never terminate the loop; cancellation returns nil.
func (r *Runner) Run(ctx context.Context) error {
	// Obtain a token before the first fetch, retrying on the flat
	// interval so a briefly unavailable identity API does not kill the
	// process.
	for {
		_, err := r.auth.EnsureValidToken(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("Failed to obtain auth token", zap.Error(err))
		if r.wait(ctx) != nil {
			return nil
		}
	}

	cursor := r.processor.Cursor()

	if r.processor.NeedsDeduplication() {
		logger.Info("Resuming from last event, will check for duplicates")
	} else {
		logger.Info("Starting fresh, no previous event found")
	}

	markerMisses := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		r.iterations++
		logger.Debug("Poll iteration", zap.Uint64("iteration", r.iterations))

		page, err := r.source.FetchPage(ctx, cursor)
		if errors.Is(err, source.ErrTokenExpired) {
			logger.Warn("Token expired, refreshing token")
			if _, err := r.auth.RefreshToken(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("Token refresh failed", zap.Error(err))
				if r.wait(ctx) != nil {
					return nil
				}
			}
			// Retry the same cursor with the new token
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Failed to fetch audit logs", zap.Error(err),
				zap.Duration("retry_in", r.settings.PollInterval))
			if r.wait(ctx) != nil {
				return nil
			}
			continue
		}

		result, err := r.processor.ProcessBatch(ctx, page.Events, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Failed to process batch", zap.Error(err),
				zap.Duration("retry_in", r.settings.PollInterval))
			if r.wait(ctx) != nil {
				return nil
			}
			continue
		}

		if result.FoundLastEvent {
			markerMisses = 0
		} else {
			markerMisses++
			if markerMisses >= markerMissWarnThreshold {
				logger.Error("Resume marker repeatedly missing from fetched batches; polling may be wedged",
					zap.Int("consecutive_misses", markerMisses))
			}
		}

		if page.NextCursor != "" {
			// Catch-up burst: more pages exist, keep fetching without a
			// wait and without re-scanning for the marker
			r.processor.ResetDeduplication()
			logger.Info("More data available, moving to next page")
			cursor = page.NextCursor
			continue
		}

		// Caught up to the live edge: idle, then re-validate against the
		// marker on the next wake
		r.processor.EnableDeduplication()
		logger.Info("No more data available, waiting before next check",
			zap.Duration("poll_interval", r.settings.PollInterval))
		if r.wait(ctx) != nil {
			return nil
		}
	}
}

// wait sleeps for the poll interval, returning immediately on cancellation
func (r *Runner) wait(ctx context.Context) error {
	return r.waiter.Wait(ctx, r.settings.PollInterval)
}
