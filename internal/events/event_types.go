package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/casaplus/listing-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered        EventType = "user_registered"
	EventPropertyCreated       EventType = "property_created"
	EventPropertyUpdated       EventType = "property_updated"
	EventPropertyDeleted       EventType = "property_deleted"
	EventPhysicalVisitsUpdated EventType = "physical_visits_updated"
	EventPropertyViewed        EventType = "property_viewed"
)

// ListingEvents are the events that change listing aggregates.
var ListingEvents = []EventType{
	EventPropertyCreated,
	EventPropertyUpdated,
	EventPropertyDeleted,
	EventPhysicalVisitsUpdated,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	PropertyID string      `json:"propertyId,omitempty"`
	ActorID    string      `json:"actorId,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, propertyID, actorID string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		PropertyID: propertyID,
		ActorID:    actorID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// PropertyCreatedPayload payload.
type PropertyCreatedPayload struct {
	Title        string              `json:"title"`
	Type         domain.ListingType  `json:"type"`
	PropertyType domain.PropertyType `json:"propertyType"`
	Location     domain.Location     `json:"location"`
	Images       int                 `json:"images"`
}

// PropertyUpdatedPayload payload.
type PropertyUpdatedPayload struct {
	Fields        []string `json:"fields"`
	ImagesChanged bool     `json:"imagesChanged"`
}

// PropertyDeletedPayload payload.
type PropertyDeletedPayload struct {
	Reason domain.DeleteReason `json:"reason"`
}

// PhysicalVisitsUpdatedPayload payload.
type PhysicalVisitsUpdatedPayload struct {
	Previous int64 `json:"previous"`
	Current  int64 `json:"current"`
}

// PropertyViewedPayload payload.
type PropertyViewedPayload struct {
	Views int64 `json:"views"`
}
