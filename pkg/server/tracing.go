package server

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/tracestream/pkg/protocol"
)

// Span attribute keys.
const (
	attrConnID        = "tracestream.conn_id"
	attrClientMajor   = "tracestream.client.major"
	attrClientMinor   = "tracestream.client.minor"
	attrGoodbyeReason = "tracestream.goodbye_reason"
	attrSyncReason    = "tracestream.sync_reason"
	attrSendSync      = "tracestream.send_sync"
	attrHasGame       = "tracestream.has_game"
	attrSyncSent      = "tracestream.sync_sent"
)

// tracer wraps the OpenTelemetry tracer resolved from the global provider.
// Spans are short and local: one per handshake, goodbye or push.
type tracer struct {
	t trace.Tracer
}

func newTracer(name string) *tracer {
	if name == "" {
		name = DefaultTracerName
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) start(name, connID string, attrs ...attribute.KeyValue) trace.Span {
	if t == nil {
		return trace.SpanFromContext(context.Background())
	}
	attrs = append(attrs, attribute.String(attrConnID, connID))
	_, span := t.t.Start(context.Background(), name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return span
}

func (t *tracer) startHandshake(connID string, h protocol.Hello) trace.Span {
	return t.start("tracestream.handshake", connID,
		attribute.Int(attrClientMajor, int(h.Major)),
		attribute.Int(attrClientMinor, int(h.Minor)),
	)
}

func (t *tracer) startGoodbye(connID string, reason protocol.GoodbyeReason) trace.Span {
	return t.start("tracestream.goodbye", connID,
		attribute.String(attrGoodbyeReason, reason.String()),
	)
}

func (t *tracer) startPush(connID string, sendSync bool, reason protocol.SyncReason) trace.Span {
	return t.start("tracestream.push", connID,
		attribute.Bool(attrSendSync, sendSync),
		attribute.String(attrSyncReason, reason.String()),
	)
}

// endSpan records err, if any, and ends span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
