package testutil

import (
	"context"
	"sync"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// RecordingPublisher keeps every event a service publishes after commit.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

// Events returns a copy of what was published so far.
func (p *RecordingPublisher) Events() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

// Types lists the published event types in order.
func (p *RecordingPublisher) Types() []string {
	var types []string
	for _, e := range p.Events() {
		types = append(types, e.Meta().Type)
	}
	return types
}

var _ shared.EventPublisher = (*RecordingPublisher)(nil)
