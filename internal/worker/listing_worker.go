package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/casaplus/listing-service/internal/events"
)

// SnapshotInvalidator drops cached aggregates.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context) error
}

// ListingActivityWorker keeps derived state in step with listing events and
// writes an audit line for each one.
type ListingActivityWorker struct {
	dispatcher events.Dispatcher
	snapshots  SnapshotInvalidator
	logger     *zap.Logger
}

// NewListingActivityWorker builds the worker. snapshots may be nil.
func NewListingActivityWorker(dispatcher events.Dispatcher, snapshots SnapshotInvalidator, logger *zap.Logger) *ListingActivityWorker {
	return &ListingActivityWorker{dispatcher: dispatcher, snapshots: snapshots, logger: logger}
}

// Start registers the event handlers.
func (w *ListingActivityWorker) Start() {
	if w == nil || w.dispatcher == nil {
		return
	}
	for _, eventType := range events.ListingEvents {
		w.dispatcher.Subscribe(eventType, w.handleListingEvent)
	}
	w.dispatcher.Subscribe(events.EventPropertyViewed, w.handlePropertyViewed)
	w.dispatcher.Subscribe(events.EventUserRegistered, w.handleUserRegistered)
}

func (w *ListingActivityWorker) handleListingEvent(ctx context.Context, event events.Event) error {
	w.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("property_id", event.PropertyID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return w.invalidate(ctx, event)
}

// handlePropertyViewed runs on every read, so it skips the audit line.
func (w *ListingActivityWorker) handlePropertyViewed(ctx context.Context, event events.Event) error {
	return w.invalidate(ctx, event)
}

func (w *ListingActivityWorker) handleUserRegistered(ctx context.Context, event events.Event) error {
	w.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("user_id", event.ActorID))
	// totalUsers and usersRegisteredPerMonth change too
	return w.invalidate(ctx, event)
}

func (w *ListingActivityWorker) invalidate(ctx context.Context, event events.Event) error {
	if w.snapshots == nil {
		return nil
	}
	if err := w.snapshots.InvalidateSnapshot(ctx); err != nil {
		w.logger.Warn("statistics cache invalidation failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
