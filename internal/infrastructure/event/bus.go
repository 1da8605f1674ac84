// Package event dispatches committed ledger events to in-process subscribers.
package event

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Stats counts dispatch activity since the bus was created.
type Stats struct {
	Published      int64
	HandlerFailure int64
}

// Bus delivers events synchronously, in subscription order. Services
// publish after commit, so a failing or panicking handler is logged and
// the rest still run; the ledger write is never undone.
type Bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	byType map[string][]shared.EventHandler
	all    []shared.EventHandler
	closed bool

	published atomic.Int64
	failures  atomic.Int64
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger, byType: make(map[string][]shared.EventHandler)}
}

// Subscribe registers handler for types, or for handler.EventTypes() when
// none are given. A handler with no types at all receives every event.
func (b *Bus) Subscribe(handler shared.EventHandler, types ...string) {
	if len(types) == 0 {
		types = handler.EventTypes()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.all = append(b.all, handler)
	}
	for _, t := range types {
		b.byType[t] = append(b.byType[t], handler)
	}
	b.logger.Debug("event handler subscribed", zap.Strings("event_types", types))
}

// handlers returns false once the bus is closed.
func (b *Bus) handlers(eventType string) ([]shared.EventHandler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, false
	}
	return slices.Concat(b.byType[eventType], b.all), true
}

// Publish implements shared.EventPublisher. It never fails; events
// published after Close are dropped.
func (b *Bus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		meta := ev.Meta()
		hs, open := b.handlers(meta.Type)
		if !open {
			return nil
		}
		b.published.Add(1)
		for _, h := range hs {
			if err := deliver(ctx, h, ev); err != nil {
				b.failures.Add(1)
				logger.Enrich(ctx, b.logger).Error("event handler failed",
					zap.String("event_type", meta.Type),
					zap.Stringer("event_id", meta.ID),
					zap.Stringer("aggregate", meta.Aggregate),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Close stops delivery. Calls to Publish already running finish normally.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	s := b.Stats()
	b.logger.Info("event bus closed",
		zap.Int64("published", s.Published),
		zap.Int64("handler_failures", s.HandlerFailure),
	)
}

func (b *Bus) Stats() Stats {
	return Stats{Published: b.published.Load(), HandlerFailure: b.failures.Load()}
}

func deliver(ctx context.Context, h shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}

var _ shared.EventPublisher = (*Bus)(nil)
