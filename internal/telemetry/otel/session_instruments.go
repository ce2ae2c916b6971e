package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// SessionInstruments publishes metrics and traces for relay sessions.
type SessionInstruments struct {
	meterEnabled bool
	traceEnabled bool

	counterSessions metric.Int64Counter
	counterErrors   metric.Int64Counter
	counterFrames   metric.Int64Counter
	counterBytes    metric.Int64Counter
	histDuration    metric.Int64Histogram

	tracer trace.Tracer
}

// SessionHandle tracks one relay session from open to teardown.
type SessionHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

func newSessionInstruments(p *Provider) *SessionInstruments {
	if p == nil {
		return nil
	}

	inst := &SessionInstruments{
		meterEnabled: p.meterProvider != nil,
		traceEnabled: p.tracerProvider != nil,
	}
	if p.meterProvider != nil {
		inst.counterSessions, _ = p.meter.Int64Counter(
			"relay.sessions_total",
			metric.WithDescription("Number of relay sessions opened"),
		)
		inst.counterErrors, _ = p.meter.Int64Counter(
			"relay.session_errors_total",
			metric.WithDescription("Number of relay sessions that ended in error"),
		)
		inst.counterFrames, _ = p.meter.Int64Counter(
			"relay.frames_forwarded_total",
			metric.WithDescription("Outbound frames forwarded across all sessions"),
		)
		inst.counterBytes, _ = p.meter.Int64Counter(
			"relay.bytes_forwarded_total",
			metric.WithDescription("Outbound payload bytes forwarded across all sessions"),
		)
		inst.histDuration, _ = p.meter.Int64Histogram(
			"relay.session.duration",
			metric.WithDescription("Relay session duration in milliseconds"),
		)
	}
	if p.tracerProvider != nil {
		inst.tracer = p.tracer
	}
	return inst
}

// Start opens a session handle. kind is "logs" or "shell".
func (i *SessionInstruments) Start(parent context.Context, kind, container string) (*SessionHandle, context.Context) {
	if i == nil {
		return nil, parent
	}

	h := &SessionHandle{
		ctx:   parent,
		start: time.Now(),
		attrs: []attribute.KeyValue{
			attribute.String("relay.kind", kind),
			attribute.String("relay.container", container),
		},
	}

	if i.traceEnabled && i.tracer != nil {
		ctx, span := i.tracer.Start(parent, "relay."+kind, trace.WithAttributes(h.attrs...))
		h.ctx = ctx
		h.span = span
	}

	if i.meterEnabled {
		i.counterSessions.Add(h.ctx, 1, metric.WithAttributes(h.attrs...))
	}
	return h, h.ctx
}

// Finish records the session outcome. framesOut/bytesOut come from the
// relay's per-session stats.
func (i *SessionInstruments) Finish(h *SessionHandle, framesOut, bytesOut int64, sessionErr error) {
	if i == nil || h == nil {
		return
	}
	elapsed := time.Since(h.start)

	if i.meterEnabled {
		attrs := metric.WithAttributes(h.attrs...)
		i.counterFrames.Add(h.ctx, framesOut, attrs)
		i.counterBytes.Add(h.ctx, bytesOut, attrs)
		i.histDuration.Record(h.ctx, elapsed.Milliseconds(), attrs)
		if sessionErr != nil {
			i.counterErrors.Add(h.ctx, 1, attrs)
		}
	}

	if h.span != nil {
		h.span.SetAttributes(
			attribute.Int64("relay.frames_out", framesOut),
			attribute.Int64("relay.bytes_out", bytesOut),
		)
		if sessionErr != nil {
			h.span.SetStatus(codes.Error, sessionErr.Error())
		}
		h.span.End()
	}
}
