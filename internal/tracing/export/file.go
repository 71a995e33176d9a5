// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package export provides span exporter implementations.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// timestampLayout renders UTC timestamps with microsecond precision,
// e.g. 2025-01-02T15:04:05.123456Z. Consumers of the trace file parse
// this exact shape.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// FileExporter accumulates finished spans in memory and, on shutdown,
// serializes the whole batch as a single JSON array to a file.
//
// Export is best-effort: appending to the buffer cannot fail, and a
// failed write at shutdown never reaches the emitting code paths. The
// buffer is cleared after each write, so a second shutdown with no
// intervening exports rewrites the file as an empty array.
type FileExporter struct {
	path string

	mu      sync.Mutex
	spans   []spanRecord
	stopped bool
}

// spanRecord is the wire form of one span in the output file.
// Field names and nesting are a compatibility contract.
type spanRecord struct {
	Name       string               `json:"name"`
	TraceID    string               `json:"trace_id"`
	SpanID     string               `json:"span_id"`
	ParentID   *string              `json:"parent_id"`
	StartTime  string               `json:"start_time"`
	EndTime    string               `json:"end_time"`
	DurationNS int64                `json:"duration_ns"`
	Attributes map[string]any       `json:"attributes"`
	Events     []eventRecord        `json:"events"`
	Status     statusRecord         `json:"status"`
	Kind       string               `json:"kind"`
	Resource   map[string]any       `json:"resource"`
	Scope      instrumentationScope `json:"instrumentation_scope"`
}

type eventRecord struct {
	Name       string         `json:"name"`
	Timestamp  string         `json:"timestamp"`
	Attributes map[string]any `json:"attributes"`
}

type statusRecord struct {
	StatusCode  string `json:"status_code"`
	Description string `json:"description"`
}

type instrumentationScope struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	SchemaURL string `json:"schema_url"`
}

// NewFileExporter creates an exporter that writes its accumulated spans
// to path when Shutdown is called.
func NewFileExporter(path string) (*FileExporter, error) {
	if path == "" {
		return nil, fmt.Errorf("file exporter requires an output path")
	}
	return &FileExporter{path: path}, nil
}

// ExportSpans appends the batch to the in-memory buffer.
// Spans arrive here in end-time order per trace (the batch processor
// preserves it) and the buffer keeps that order.
func (e *FileExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	for _, s := range spans {
		e.spans = append(e.spans, convertSpan(s))
	}
	return nil
}

// Shutdown writes the buffered spans to the output file as one JSON array
// and clears the buffer. An empty buffer produces a file containing [].
// Shutdown is re-entrant; later calls rewrite the (now empty) array.
func (e *FileExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	records := e.spans
	if records == nil {
		records = []spanRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %d spans: %w", len(records), err)
	}

	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trace file %s: %w", e.path, err)
	}

	e.spans = nil
	e.stopped = true
	return nil
}

// Path returns the configured output file path.
func (e *FileExporter) Path() string {
	return e.path
}

// Len returns the number of buffered spans. Used by tests and diagnostics.
func (e *FileExporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spans)
}

// convertSpan flattens a ReadOnlySpan into its wire record.
func convertSpan(s sdktrace.ReadOnlySpan) spanRecord {
	rec := spanRecord{
		Name:       s.Name(),
		TraceID:    s.SpanContext().TraceID().String(),
		SpanID:     s.SpanContext().SpanID().String(),
		StartTime:  formatTimestamp(s.StartTime()),
		EndTime:    formatTimestamp(s.EndTime()),
		DurationNS: s.EndTime().Sub(s.StartTime()).Nanoseconds(),
		Attributes: make(map[string]any, len(s.Attributes())),
		Events:     make([]eventRecord, 0, len(s.Events())),
		Status: statusRecord{
			StatusCode:  statusCodeName(s.Status().Code),
			Description: s.Status().Description,
		},
		Kind:     spanKindName(s.SpanKind()),
		Resource: make(map[string]any),
		Scope: instrumentationScope{
			Name:      s.InstrumentationScope().Name,
			Version:   s.InstrumentationScope().Version,
			SchemaURL: s.InstrumentationScope().SchemaURL,
		},
	}

	if s.Parent().IsValid() {
		parent := s.Parent().SpanID().String()
		rec.ParentID = &parent
	}

	for _, attr := range s.Attributes() {
		rec.Attributes[string(attr.Key)] = attr.Value.AsInterface()
	}

	for _, ev := range s.Events() {
		event := eventRecord{
			Name:       ev.Name,
			Timestamp:  formatTimestamp(ev.Time),
			Attributes: make(map[string]any, len(ev.Attributes)),
		}
		for _, attr := range ev.Attributes {
			event.Attributes[string(attr.Key)] = attr.Value.AsInterface()
		}
		rec.Events = append(rec.Events, event)
	}

	if res := s.Resource(); res != nil {
		for _, attr := range res.Attributes() {
			rec.Resource[string(attr.Key)] = attr.Value.AsInterface()
		}
	}

	return rec
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func statusCodeName(code codes.Code) string {
	switch code {
	case codes.Ok:
		return "OK"
	case codes.Error:
		return "ERROR"
	default:
		return "UNSET"
	}
}

func spanKindName(kind trace.SpanKind) string {
	switch kind {
	case trace.SpanKindClient:
		return "CLIENT"
	case trace.SpanKindServer:
		return "SERVER"
	case trace.SpanKindProducer:
		return "PRODUCER"
	case trace.SpanKindConsumer:
		return "CONSUMER"
	default:
		return "INTERNAL"
	}
}

// Compile-time check that FileExporter implements sdktrace.SpanExporter
var _ sdktrace.SpanExporter = (*FileExporter)(nil)
