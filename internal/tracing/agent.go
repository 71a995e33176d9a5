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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tombee/ensemble/pkg/agent"
	"github.com/tombee/ensemble/pkg/observability"
)

// ErrUnsupportedTarget is returned by WrapAgent when the target does not
// expose the message-handling capability the wrapper instruments.
var ErrUnsupportedTarget = errors.New("target does not implement agent.MessageHandler")

// maxContentAttr caps how much message content is copied onto a span.
const maxContentAttr = 1000

// TracedAgent wraps a message handler to add a CONSUMER span around every
// turn. Each OnMessages() call records sender, message classification, input
// and output content, and token usage when the handler reports it.
type TracedAgent struct {
	handler agent.MessageHandler
	tracer  observability.Tracer
	metrics *MetricsCollector // Optional metrics collector
}

// WrapAgent wraps a message handler with tracing instrumentation. The target
// must implement agent.MessageHandler; anything else fails with
// ErrUnsupportedTarget so setup aborts before any conversation runs. The
// target itself is never modified; callers use the returned wrapper in its
// place.
func WrapAgent(target any, tracer observability.Tracer) (agent.MessageHandler, error) {
	handler, ok := target.(agent.MessageHandler)
	if !ok {
		return nil, fmt.Errorf("%w: %T lacks OnMessages(ctx, messages, sender)", ErrUnsupportedTarget, target)
	}
	return &TracedAgent{
		handler: handler,
		tracer:  tracer,
	}, nil
}

// WrapAgentWithMetrics wraps a message handler with both tracing and metrics.
func WrapAgentWithMetrics(target any, tracer observability.Tracer, metrics *MetricsCollector) (agent.MessageHandler, error) {
	wrapped, err := WrapAgent(target, tracer)
	if err != nil {
		return nil, err
	}
	traced := wrapped.(*TracedAgent)
	traced.metrics = metrics
	return traced, nil
}

// Name returns the underlying handler's name.
func (t *TracedAgent) Name() string {
	return t.handler.Name()
}

// Description forwards the wrapped handler's description when it has one,
// so speaker selection sees through the wrapper.
func (t *TracedAgent) Description() string {
	if d, ok := t.handler.(interface{ Description() string }); ok {
		return d.Description()
	}
	return ""
}

// OnMessages creates a span for the turn, delegates to the wrapped handler,
// and records the outcome. Errors from the handler are returned unchanged.
func (t *TracedAgent) OnMessages(ctx context.Context, messages []agent.Message, sender string) (*agent.TaskResult, error) {
	startTime := time.Now()
	agentName := t.handler.Name()

	input := latestContent(messages)
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("messaging.process %s", agentName),
		observability.WithSpanKind(observability.SpanKindConsumer),
		observability.WithAttributes(map[string]any{
			"messaging.operation":    "process",
			"messaging.destination":  agentName,
			"ai.agent.name":          agentName,
			"ai.agent.role":          agentRole(agentName),
			"messaging.message.type": classifyMessage(messages, input),
			"message.input.content":  capContent(input),
			"messaging.sender.name":  senderName(sender),
		}),
	)
	defer span.End()

	result, err := t.handler.OnMessages(ctx, messages, sender)
	duration := time.Since(startTime)

	if err != nil {
		span.SetAttributes(map[string]any{
			"exception.type":    fmt.Sprintf("%T", err),
			"exception.message": err.Error(),
		})
		span.RecordError(err)
		if t.metrics != nil {
			t.metrics.RecordMessage(ctx, agentName, "error", 0, 0, duration)
		}
		return nil, err
	}

	var promptTokens, completionTokens int
	if result != nil {
		if result.Usage != nil {
			promptTokens = result.Usage.PromptTokens
			completionTokens = result.Usage.CompletionTokens
			span.SetAttributes(map[string]any{
				"token.usage.prompt":     result.Usage.PromptTokens,
				"token.usage.completion": result.Usage.CompletionTokens,
				"token.usage.total":      result.Usage.TotalTokens,
			})
		}
		if len(result.ToolCalls) > 0 {
			span.SetAttributes(map[string]any{
				"tool_calls_count": len(result.ToolCalls),
			})
		}
		if len(result.Messages) > 0 {
			span.SetAttributes(map[string]any{
				"messages.returned_count": len(result.Messages),
			})
		}
		if output := outputContent(result); output != "" {
			span.SetAttributes(map[string]any{
				"message.output.content": capContent(output),
			})
		}
	}

	if t.metrics != nil {
		t.metrics.RecordMessage(ctx, agentName, "success", promptTokens, completionTokens, duration)
	}

	// A non-nil result counts as success even when no content or usage was
	// extracted; the handler signals failure through its error return.
	span.SetStatus(observability.StatusCodeOK, "")
	return result, nil
}

// outputContent extracts what the turn produced: the result's content,
// or a rendering of its tool calls when no text came back.
func outputContent(result *agent.TaskResult) string {
	if result.Content != "" {
		return result.Content
	}
	if len(result.ToolCalls) == 0 {
		return ""
	}
	calls := make([]string, 0, len(result.ToolCalls))
	for _, tc := range result.ToolCalls {
		calls = append(calls, fmt.Sprintf("%s(%s)", tc.Name, tc.Arguments))
	}
	return "tool calls: " + strings.Join(calls, ", ")
}

// latestContent returns the content of the last message, or empty when the
// list is empty.
func latestContent(messages []agent.Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}

// classifyMessage guesses the message type by substring match. The result is
// an advisory annotation only; nothing downstream branches on it.
func classifyMessage(messages []agent.Message, content string) string {
	switch {
	case strings.Contains(content, "tool_code"):
		return "tool_code"
	case strings.Contains(content, "tool_response"):
		return "tool_response"
	case len(messages) == 1:
		return "initial_request"
	default:
		return "plain_text"
	}
}

// agentRole maps well-known agent names to their team role.
func agentRole(agentName string) string {
	switch agentName {
	case "PlanningAgent":
		return "orchestrator"
	case "WeatherAgent", "WebSearchAgent":
		return "executor"
	default:
		return "unknown"
	}
}

func senderName(sender string) string {
	if sender == "" {
		return "Unknown"
	}
	return sender
}

// capContent truncates content to the attribute limit with an ellipsis.
func capContent(content string) string {
	if len(content) > maxContentAttr {
		return content[:maxContentAttr] + "..."
	}
	return content
}

// Compile-time check that TracedAgent implements agent.MessageHandler
var _ agent.MessageHandler = (*TracedAgent)(nil)
