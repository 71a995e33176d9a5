package builtin

import (
	"context"

	"github.com/tombee/ensemble/pkg/observability"
)

// recordingTracer captures spans so tests can assert on attributes and
// events without a full SDK pipeline.
type recordingTracer struct {
	spans []*recordedSpan
}

type recordedSpan struct {
	name       string
	kind       observability.SpanKind
	attributes map[string]any
	events     []recordedEvent
	status     observability.StatusCode
	message    string
	errs       []error
	ended      bool
}

type recordedEvent struct {
	name       string
	attributes map[string]any
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...observability.SpanOption) (context.Context, observability.SpanHandle) {
	cfg := &observability.SpanConfig{}
	for _, opt := range opts {
		opt.ApplySpanOption(cfg)
	}
	span := &recordedSpan{
		name:       name,
		kind:       cfg.SpanKind,
		attributes: make(map[string]any),
	}
	for k, v := range cfg.Attributes {
		span.attributes[k] = v
	}
	t.spans = append(t.spans, span)
	return ctx, span
}

func (t *recordingTracer) spanNamed(name string) *recordedSpan {
	for _, s := range t.spans {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (s *recordedSpan) End() {
	s.ended = true
}

func (s *recordedSpan) SetStatus(code observability.StatusCode, message string) {
	s.status = code
	s.message = message
}

func (s *recordedSpan) SetAttributes(attrs map[string]any) {
	for k, v := range attrs {
		s.attributes[k] = v
	}
}

func (s *recordedSpan) AddEvent(name string, attrs map[string]any) {
	s.events = append(s.events, recordedEvent{name: name, attributes: attrs})
}

func (s *recordedSpan) SpanContext() observability.TraceContext {
	return observability.TraceContext{}
}

func (s *recordedSpan) RecordError(err error) {
	s.errs = append(s.errs, err)
	s.status = observability.StatusCodeError
}
