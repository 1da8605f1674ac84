package telemetry

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "stickroom-ledger"

// Span attribute keys for ledger operations. AttrProductID and AttrAgentID
// are shared with metrics.
var (
	AttrSaleID    = attribute.Key("sale_id")
	AttrBonusID   = attribute.Key("bonus_id")
	AttrQuantity  = attribute.Key("quantity")
	AttrAmount    = attribute.Key("amount")
	AttrErrorCode = attribute.Key("error_code")
)

// Operation is the span of one service call.
type Operation struct {
	span trace.Span
}

// Trace starts an internal span named service.name on the global provider.
// The span lives until End.
//
//	ctx, op := telemetry.Trace(ctx, "sales", "record", telemetry.AttrProductID.Int64(id))
//	receipt, err := s.recordSale(ctx, req)
//	op.End(err)
func Trace(ctx context.Context, service, name string, attrs ...attribute.KeyValue) (context.Context, Operation) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, service+"."+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, Operation{span: span}
}

// Set adds result attributes.
func (op Operation) Set(attrs ...attribute.KeyValue) {
	op.span.SetAttributes(attrs...)
}

// Note records a named event, such as a bonus that could not be attributed.
func (op Operation) Note(event string, attrs ...attribute.KeyValue) {
	op.span.AddEvent(event, trace.WithAttributes(attrs...))
}

// End finishes the span. A non-nil err marks it failed; domain errors also
// carry their code as error_code.
func (op Operation) End(err error) {
	if err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			op.span.SetAttributes(AttrErrorCode.String(de.Code))
		}
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
	}
	op.span.End()
}

// Money renders amount with two decimal places.
func Money(key attribute.Key, amount decimal.Decimal) attribute.KeyValue {
	return key.String(amount.StringFixed(2))
}

// TraceID returns the trace id active in ctx, or "".
func TraceID(ctx context.Context) string {
	id := trace.SpanContextFromContext(ctx).TraceID()
	if !id.IsValid() {
		return ""
	}
	return id.String()
}
