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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector records conversation metrics through the OpenTelemetry
// metric SDK, exposed via the Prometheus exporter.
type MetricsCollector struct {
	meter metric.Meter

	// Counters
	messagesTotal metric.Int64Counter
	toolsTotal    metric.Int64Counter
	tokensTotal   metric.Int64Counter

	// Histograms
	messageDuration metric.Float64Histogram
	toolDuration    metric.Float64Histogram
}

// NewMetricsCollector creates a new metrics collector using the given meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("ensemble")

	mc := &MetricsCollector{meter: meter}

	var err error

	mc.messagesTotal, err = meter.Int64Counter(
		"ensemble_messages_total",
		metric.WithDescription("Total number of agent messages processed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	mc.toolsTotal, err = meter.Int64Counter(
		"ensemble_tool_calls_total",
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	mc.tokensTotal, err = meter.Int64Counter(
		"ensemble_tokens_total",
		metric.WithDescription("Total number of tokens processed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	mc.messageDuration, err = meter.Float64Histogram(
		"ensemble_message_duration_seconds",
		metric.WithDescription("Agent message handling duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.toolDuration, err = meter.Float64Histogram(
		"ensemble_tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordMessage records one processed agent message.
func (mc *MetricsCollector) RecordMessage(ctx context.Context, agentName, status string, promptTokens, completionTokens int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("agent", agentName),
		attribute.String("status", status),
	}

	mc.messagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mc.messageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if promptTokens > 0 {
		tokenAttrs := append(attrs, attribute.String("type", "prompt"))
		mc.tokensTotal.Add(ctx, int64(promptTokens), metric.WithAttributes(tokenAttrs...))
	}
	if completionTokens > 0 {
		tokenAttrs := append(attrs, attribute.String("type", "completion"))
		mc.tokensTotal.Add(ctx, int64(completionTokens), metric.WithAttributes(tokenAttrs...))
	}
}

// RecordToolCall records one tool execution.
func (mc *MetricsCollector) RecordToolCall(ctx context.Context, toolName, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("tool", toolName),
		attribute.String("status", status),
	}

	mc.toolsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mc.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
