package processor

import (
	"context"
	"fmt"

	"github.com/auditpump/auditpump/internal/sink"
	"github.com/auditpump/auditpump/internal/source"
	"github.com/auditpump/auditpump/internal/storage"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// Result describes the outcome of processing one batch of events.
type Result struct {
	// SavedCount is the number of events delivered to the sink
	SavedCount int

	// FoundLastEvent is false only when a dedup scan could not locate the
	// resume marker anywhere in the batch
	FoundLastEvent bool
}

// Processor is the dedup/resume engine. It decides which events in a
// fetched batch are new relative to the persisted resume marker, delivers
// them to the sink, and advances the marker after a successful delivery.
//
// The marker is matched by the composite key (event_id, event_saved_time);
// the timestamp guards against event id reuse. Delivery always precedes
// marker persistence, so a crash between the two re-delivers the batch on
// restart rather than losing it.
type Processor struct {
	store      storage.Store
	sink       sink.Sink
	state      storage.EventState
	needsDedup bool
}

// New creates a processor, loading the persisted resume marker. Dedup is
// required on the first batch only when the marker is resumable.
func New(ctx context.Context, store storage.Store, snk sink.Sink) (*Processor, error) {
	state, err := store.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load event state: %w", err)
	}
	return &Processor{
		store:      store,
		sink:       snk,
		state:      state,
		needsDedup: state.Resumable(),
	}, nil
}

// Cursor returns the persisted pagination cursor, or "" when unset
func (p *Processor) Cursor() string {
	return p.state.Cursor
}

// NeedsDeduplication reports whether the next batch will be scanned for the
// resume marker before any event in it is considered new
func (p *Processor) NeedsDeduplication() bool {
	return p.needsDedup
}

// ResetDeduplication clears the dedup flag. Called when pagination advances
// to a further page: within one catch-up burst every page after the first
// is strictly newer than the marker, so no re-scan is needed.
func (p *Processor) ResetDeduplication() {
	p.needsDedup = false
}

// EnableDeduplication sets the dedup flag. Called when a fetch reports no
// further pages: the loop is about to idle, and on the next wake the batch
// must be re-validated against the marker in case the API appended events
// at the same cursor position during the idle interval.
func (p *Processor) EnableDeduplication() {
	p.needsDedup = true
}

// ProcessBatch delivers the new events of a fetched batch to the sink and
// advances the persisted marker. Which events count as new depends on the
// dedup flag; see Result for the outcome.
func (p *Processor) ProcessBatch(ctx context.Context, events []source.Event, cursor string) (Result, error) {
	if len(events) == 0 {
		logger.Info("No events in batch")
		return Result{SavedCount: 0, FoundLastEvent: true}, nil
	}

	if !p.needsDedup {
		// Fresh start or moved to a new page: every event is new
		logger.Info("Saving new events", zap.Int("count", len(events)))
		if err := p.sink.AddEvents(ctx, events); err != nil {
			return Result{}, fmt.Errorf("failed to deliver events: %w", err)
		}
		if err := p.updateState(ctx, events[len(events)-1], cursor); err != nil {
			return Result{}, err
		}
		return Result{SavedCount: len(events), FoundLastEvent: true}, nil
	}

	logger.Info("Checking for events after last saved event")
	return p.processWithDedup(ctx, events, cursor)
}

// processWithDedup scans the batch for the resume marker and delivers only
// the events after it.
func (p *Processor) processWithDedup(ctx context.Context, events []source.Event, cursor string) (Result, error) {
	for i, event := range events {
		if !p.matchesLastEvent(event) {
			continue
		}

		if i == len(events)-1 {
			logger.Info("Last event found at end of batch, no new events")
			return Result{SavedCount: 0, FoundLastEvent: true}, nil
		}

		newEvents := events[i+1:]
		logger.Info("Found new events after last saved event", zap.Int("count", len(newEvents)))
		if err := p.sink.AddEvents(ctx, newEvents); err != nil {
			return Result{}, fmt.Errorf("failed to deliver events: %w", err)
		}
		if err := p.updateState(ctx, events[len(events)-1], cursor); err != nil {
			return Result{}, err
		}
		return Result{SavedCount: len(newEvents), FoundLastEvent: true}, nil
	}

	// Ambiguous: the marker event may have aged out of the API's retention
	// window, or pagination may have skipped it. Leave state untouched and
	// let the caller decide what to do.
	logger.Warn("Last saved event not found in current batch",
		zap.String("event_id", p.state.EventID))
	return Result{SavedCount: 0, FoundLastEvent: false}, nil
}

// matchesLastEvent checks an event against the marker's composite key
func (p *Processor) matchesLastEvent(event source.Event) bool {
	return event.ID() == p.state.EventID && event.SavedTime() == p.state.EventSavedTime
}

// updateState persists the marker pointing at the given event. Only called
// after the sink accepted the batch.
func (p *Processor) updateState(ctx context.Context, lastEvent source.Event, cursor string) error {
	state := storage.EventState{
		EventID:        lastEvent.ID(),
		EventSavedTime: lastEvent.SavedTime(),
		Cursor:         cursor,
	}
	if err := p.store.SetState(ctx, state); err != nil {
		return fmt.Errorf("failed to persist event state: %w", err)
	}
	p.state = state
	return nil
}
