package shared

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Aggregate names the ledger row an event is about.
type Aggregate struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

func (a Aggregate) String() string {
	return a.Kind + "#" + strconv.FormatInt(a.ID, 10)
}

// EventMeta is embedded by every ledger event. Ids are UUIDv7 so they sort
// by creation time.
type EventMeta struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	Aggregate Aggregate `json:"aggregate"`
}

// Meta implements DomainEvent for any struct embedding EventMeta.
func (m EventMeta) Meta() EventMeta {
	return m
}

func NewEventMeta(eventType, kind string, id int64) EventMeta {
	eventID, err := uuid.NewV7()
	if err != nil {
		eventID = uuid.New()
	}
	return EventMeta{
		ID:        eventID,
		Type:      eventType,
		At:        time.Now().UTC(),
		Aggregate: Aggregate{Kind: kind, ID: id},
	}
}

// DomainEvent is a committed ledger change.
type DomainEvent interface {
	Meta() EventMeta
}

// EventHandler reacts to committed ledger events.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the wanted types; nil means every event.
	EventTypes() []string
}

// EventPublisher is called by services after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// NopEventPublisher discards events. Services fall back to it when no bus is wired.
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, ...DomainEvent) error { return nil }
