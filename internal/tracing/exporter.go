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

package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tombee/ensemble/internal/tracing/export"
	"github.com/tombee/ensemble/internal/tracing/storage"
	"github.com/tombee/ensemble/pkg/observability"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// StorageExporter exports OpenTelemetry spans to SQLite storage.
// This implements the sdktrace.SpanExporter interface.
type StorageExporter struct {
	store *storage.SQLiteStore
}

// NewStorageExporter creates a new storage exporter.
func NewStorageExporter(store *storage.SQLiteStore) *StorageExporter {
	return &StorageExporter{store: store}
}

// ExportSpans exports a batch of spans to storage. A span that fails to
// store is skipped so one bad span cannot block the batch.
func (e *StorageExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, otelSpan := range spans {
		span := convertOTelSpan(otelSpan)
		if err := e.store.StoreSpan(ctx, span); err != nil {
			continue
		}
	}
	return nil
}

// Shutdown closes the underlying store.
func (e *StorageExporter) Shutdown(ctx context.Context) error {
	return e.store.Close()
}

// convertOTelSpan converts an OpenTelemetry span to the observability.Span type.
func convertOTelSpan(otelSpan sdktrace.ReadOnlySpan) *observability.Span {
	span := &observability.Span{
		TraceID:   otelSpan.SpanContext().TraceID().String(),
		SpanID:    otelSpan.SpanContext().SpanID().String(),
		Name:      otelSpan.Name(),
		StartTime: otelSpan.StartTime(),
		EndTime:   otelSpan.EndTime(),
	}

	if otelSpan.Parent().IsValid() {
		span.ParentID = otelSpan.Parent().SpanID().String()
	}

	switch otelSpan.SpanKind() {
	case trace.SpanKindClient:
		span.Kind = observability.SpanKindClient
	case trace.SpanKindServer:
		span.Kind = observability.SpanKindServer
	case trace.SpanKindProducer:
		span.Kind = observability.SpanKindProducer
	case trace.SpanKindConsumer:
		span.Kind = observability.SpanKindConsumer
	default:
		span.Kind = observability.SpanKindInternal
	}

	status := otelSpan.Status()
	switch status.Code {
	case codes.Ok:
		span.Status.Code = observability.StatusCodeOK
	case codes.Error:
		span.Status.Code = observability.StatusCodeError
		span.Status.Message = status.Description
	default:
		span.Status.Code = observability.StatusCodeUnset
	}

	span.Attributes = make(map[string]any)
	for _, attr := range otelSpan.Attributes() {
		span.Attributes[string(attr.Key)] = attr.Value.AsInterface()
	}

	span.Events = make([]observability.Event, 0, len(otelSpan.Events()))
	for _, otelEvent := range otelSpan.Events() {
		event := observability.Event{
			Name:       otelEvent.Name,
			Timestamp:  otelEvent.Time,
			Attributes: make(map[string]any),
		}
		for _, attr := range otelEvent.Attributes {
			event.Attributes[string(attr.Key)] = attr.Value.AsInterface()
		}
		span.Events = append(span.Events, event)
	}

	if res := otelSpan.Resource(); res != nil {
		span.Resource = make(map[string]any)
		for _, attr := range res.Attributes() {
			span.Resource[string(attr.Key)] = attr.Value.AsInterface()
		}
	}

	scope := otelSpan.InstrumentationScope()
	span.Scope = observability.InstrumentationScope{
		Name:      scope.Name,
		Version:   scope.Version,
		SchemaURL: scope.SchemaURL,
	}

	return span
}

// Compile-time check that StorageExporter implements sdktrace.SpanExporter
var _ sdktrace.SpanExporter = (*StorageExporter)(nil)

// CreateExporter creates a span exporter from configuration.
func CreateExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Type {
	case "file":
		return export.NewFileExporter(cfg.Path)

	case "console":
		return export.NewConsoleExporter(export.ConsoleConfig{
			PrettyPrint: true,
		})

	case "otlp":
		return export.NewOTLPExporter(ctx, export.OTLPConfig{
			Endpoint: cfg.Endpoint,
			Insecure: cfg.Insecure,
			Headers:  cfg.Headers,
		})

	case "otlp_http", "otlp-http":
		return export.NewOTLPHTTPExporter(ctx, export.OTLPHTTPConfig{
			Endpoint: cfg.Endpoint,
			Insecure: cfg.Insecure,
			Headers:  cfg.Headers,
		})

	case "sqlite":
		store, err := storage.New(storage.Config{Path: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open trace storage: %w", err)
		}
		return NewStorageExporter(store), nil

	case "none", "":
		// No exporter - tracing disabled for this entry
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Type)
	}
}

// CreateProcessors creates batch span processors for all configured
// exporters. Exporter creation failures are logged but don't block
// startup; partial export is better than no export.
func CreateProcessors(ctx context.Context, cfg Config) ([]sdktrace.SpanProcessor, error) {
	var processors []sdktrace.SpanProcessor

	for i, exporterCfg := range cfg.Exporters {
		exporter, err := CreateExporter(ctx, exporterCfg)
		if err != nil {
			slog.Warn("failed to create exporter, skipping",
				"index", i,
				"type", exporterCfg.Type,
				"error", err)
			continue
		}

		if exporter == nil {
			continue
		}

		batchOpts := []sdktrace.BatchSpanProcessorOption{}
		if cfg.BatchSize > 0 {
			batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.BatchSize))
		}
		if cfg.BatchInterval > 0 {
			batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchInterval))
		}

		processors = append(processors, sdktrace.NewBatchSpanProcessor(exporter, batchOpts...))

		slog.Info("created exporter",
			"type", exporterCfg.Type,
			"path", exporterCfg.Path,
			"endpoint", exporterCfg.Endpoint)
	}

	return processors, nil
}
