package worker

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/casaplus/listing-service/internal/events"
)

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) InvalidateSnapshot(context.Context) error {
	c.calls++
	return c.err
}

func TestListingActivityWorkerInvalidatesOnEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	inv := &countingInvalidator{}
	NewListingActivityWorker(dispatcher, inv, zap.NewNop()).Start()

	ctx := context.Background()
	published := append([]events.EventType{events.EventPropertyViewed, events.EventUserRegistered}, events.ListingEvents...)
	for _, eventType := range published {
		if err := dispatcher.Publish(ctx, events.New(eventType, "p1", "u1", nil)); err != nil {
			t.Fatalf("Publish(%s): %v", eventType, err)
		}
	}
	if want := len(published); inv.calls != want {
		t.Fatalf("invalidations = %d, want %d", inv.calls, want)
	}
}

func TestListingActivityWorkerReportsInvalidationFailure(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	inv := &countingInvalidator{err: errors.New("redis down")}
	NewListingActivityWorker(dispatcher, inv, zap.NewNop()).Start()

	err := dispatcher.Publish(context.Background(), events.New(events.EventPropertyCreated, "p1", "u1", nil))
	if err == nil {
		t.Fatal("expected invalidation error to surface from Publish")
	}
}

func TestListingActivityWorkerWithoutCache(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewListingActivityWorker(dispatcher, nil, zap.NewNop()).Start()
	if err := dispatcher.Publish(context.Background(), events.New(events.EventPropertyDeleted, "p1", "u1", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
