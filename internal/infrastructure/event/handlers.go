package event

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Func adapts a function to shared.EventHandler.
type Func struct {
	fn    func(ctx context.Context, ev shared.DomainEvent) error
	types []string
}

// On handles the given event types with fn, or every event when none are given.
func On(fn func(ctx context.Context, ev shared.DomainEvent) error, types ...string) *Func {
	return &Func{fn: fn, types: types}
}

func (f *Func) Handle(ctx context.Context, ev shared.DomainEvent) error { return f.fn(ctx, ev) }
func (f *Func) EventTypes() []string                                    { return f.types }

// LogEvents writes one structured line per committed event.
func LogEvents(log *zap.Logger) *Func {
	return On(func(ctx context.Context, ev shared.DomainEvent) error {
		meta := ev.Meta()
		logger.Enrich(ctx, log).Info("ledger event",
			zap.String("event_type", meta.Type),
			zap.String("aggregate_type", meta.Aggregate.Kind),
			zap.Int64("aggregate_id", meta.Aggregate.ID),
			zap.Stringer("event_id", meta.ID),
			zap.Time("occurred_at", meta.At),
		)
		return nil
	})
}

var _ shared.EventHandler = (*Func)(nil)
