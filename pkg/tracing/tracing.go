// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracing wires opentracing spans, backed by a jaeger reporter,
// around protocol runs.
package tracing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sirupsen/logrus"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

const (
	// LogField is the key in log message field that holds tracing id value.
	LogField = "traceid"
	// PeerField is the span tag and log field of the remote peer.
	PeerField = "peer"
)

// ErrContextNotFound is returned when tracing context is not present
// in carriers.
var ErrContextNotFound = errors.New("tracing context not found")

var noopTracer = &Tracer{tracer: new(opentracing.NoopTracer)}

type contextKey struct{}

// Tracer starts spans of protocol runs and reports them to a jaeger agent.
// A nil Tracer is valid and traces nothing.
type Tracer struct {
	tracer opentracing.Tracer
}

type Options struct {
	Enabled bool
	// Endpoint is the host:port of the jaeger agent.
	Endpoint    string
	ServiceName string
}

// NewTracer creates a new Tracer and returns a closer which needs to be closed
// when the Tracer is no longer used to flush remaining traces.
func NewTracer(o *Options) (*Tracer, io.Closer, error) {
	if o == nil {
		o = new(Options)
	}

	t, closer, err := (&config.Configuration{
		Disabled:    !o.Enabled,
		ServiceName: o.ServiceName,
		Sampler: &config.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &config.ReporterConfig{
			BufferFlushInterval: time.Second,
			LocalAgentHostPort:  o.Endpoint,
		},
	}).NewTracer()
	if err != nil {
		return nil, nil, err
	}
	return &Tracer{tracer: t}, closer, nil
}

// StartSpanFromContext starts a new tracing span that is either a root one or a
// child of existing one from the provided Context. If logger is provided, a new
// log Entry will be returned with "traceid" log field.
func (t *Tracer) StartSpanFromContext(ctx context.Context, operationName string, l logging.Logger, opts ...opentracing.StartSpanOption) (opentracing.Span, *logrus.Entry, context.Context) {
	if t == nil {
		t = noopTracer
	}

	if parentContext := FromContext(ctx); parentContext != nil {
		opts = append(opts, opentracing.ChildOf(parentContext))
	}
	span := t.tracer.StartSpan(operationName, opts...)
	sc := span.Context()
	return span, loggerWithTraceID(sc, l), WithContext(ctx, sc)
}

// StartPeerSpan starts a span of a stream with the peer p. Both the span and
// the returned log entry carry the peer id.
func (t *Tracer) StartPeerSpan(ctx context.Context, operationName string, p peer.ID, l logging.Logger) (opentracing.Span, *logrus.Entry, context.Context) {
	span, entry, ctx := t.StartSpanFromContext(ctx, operationName, l, opentracing.Tag{Key: PeerField, Value: p.String()})
	if entry != nil {
		entry = entry.WithField(PeerField, p.String())
	}
	return span, entry, ctx
}

// FinishSpan marks the span as failed when err is not nil and finishes it.
func FinishSpan(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.SetTag("error.message", err.Error())
	}
	span.Finish()
}

// WithContextFromHTTPHeaders returns a new context with the tracing span
// context extracted from HTTP headers. ErrContextNotFound is returned, with
// ctx unchanged, when the headers carry none.
func (t *Tracer) WithContextFromHTTPHeaders(ctx context.Context, headers http.Header) (context.Context, error) {
	if t == nil {
		t = noopTracer
	}

	c, err := t.tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(headers))
	if errors.Is(err, opentracing.ErrSpanContextNotFound) {
		return ctx, ErrContextNotFound
	}
	if err != nil {
		return ctx, err
	}
	return WithContext(ctx, c), nil
}

// WithContext adds tracing span context to go context.
func WithContext(ctx context.Context, c opentracing.SpanContext) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the tracing span context of ctx or nil.
func FromContext(ctx context.Context) opentracing.SpanContext {
	c, _ := ctx.Value(contextKey{}).(opentracing.SpanContext)
	return c
}

// NewLoggerWithTraceID creates a new log Entry with "traceid" field added if it
// exists in tracing span context stored from go context.
func NewLoggerWithTraceID(ctx context.Context, l logging.Logger) *logrus.Entry {
	return loggerWithTraceID(FromContext(ctx), l)
}

func loggerWithTraceID(sc opentracing.SpanContext, l logging.Logger) *logrus.Entry {
	if l == nil {
		return nil
	}
	jsc, ok := sc.(jaeger.SpanContext)
	if !ok || !jsc.TraceID().IsValid() {
		return l.NewEntry()
	}
	return l.WithField(LogField, jsc.TraceID().String())
}
