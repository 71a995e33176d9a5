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

package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tombee/ensemble/pkg/llm"
	"github.com/tombee/ensemble/pkg/tools"
)

// scriptedProvider returns canned responses in order and records the
// requests it received.
type scriptedProvider struct {
	responses []*llm.CompletionResponse
	requests  []llm.CompletionRequest
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

// echoTool returns its input back as output.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes the input." }

func (echoTool) Parameters() *tools.ParameterSchema {
	return &tools.ParameterSchema{
		Type: "object",
		Properties: map[string]tools.Property{
			"text": {Type: "string", Description: "Text to echo."},
		},
		Required: []string{"text"},
	}
}

func (echoTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, _ := args["text"].(string)
	return map[string]any{"output": "echo: " + text}, nil
}

func TestAssistantAgent_PlainTurn(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*llm.CompletionResponse{
			{
				Content:      "the answer",
				FinishReason: llm.FinishReasonStop,
				Usage:        llm.TokenUsage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
			},
		},
	}

	a, err := New(Config{
		Name:         "PlanningAgent",
		SystemPrompt: "You are a planner.",
		Model:        "test-model",
	}, provider, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := a.OnMessages(context.Background(), []Message{
		{Role: "user", Content: "question", Sender: "user"},
	}, "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Content != "the answer" {
		t.Errorf("expected content 'the answer', got %q", result.Content)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 10 {
		t.Errorf("expected usage of 10 tokens, got %+v", result.Usage)
	}
	if len(result.Messages) != 1 || result.Messages[0].Sender != "PlanningAgent" {
		t.Errorf("expected one assistant message from the agent, got %+v", result.Messages)
	}

	// The system prompt leads the conversation sent to the provider.
	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 completion request, got %d", len(provider.requests))
	}
	first := provider.requests[0].Messages[0]
	if first.Role != llm.RoleSystem || first.Content != "You are a planner." {
		t.Errorf("expected leading system prompt, got %+v", first)
	}
}

// recordedToolCall captures one RecordToolCall invocation.
type recordedToolCall struct {
	name   string
	status string
}

type fakeToolMetrics struct {
	calls []recordedToolCall
}

func (m *fakeToolMetrics) RecordToolCall(ctx context.Context, toolName, status string, duration time.Duration) {
	m.calls = append(m.calls, recordedToolCall{name: toolName, status: status})
}

func TestAssistantAgent_ToolLoop(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*llm.CompletionResponse{
			{
				ToolCalls: []llm.ToolCall{
					{ID: "call-1", Name: "echo", Arguments: `{"text":"hello"}`},
				},
				FinishReason: llm.FinishReasonToolCalls,
				Usage:        llm.TokenUsage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
			},
			{
				Content:      "tool said: echo: hello",
				FinishReason: llm.FinishReasonStop,
				Usage:        llm.TokenUsage{PromptTokens: 8, CompletionTokens: 2, TotalTokens: 10},
			},
		},
	}

	registry := tools.NewRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := New(Config{Name: "WeatherAgent", Model: "test-model"}, provider, registry, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics := &fakeToolMetrics{}
	a.SetMetrics(metrics)

	result, err := a.OnMessages(context.Background(), []Message{
		{Role: "user", Content: "use the tool", Sender: "user"},
	}, "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Content != "tool said: echo: hello" {
		t.Errorf("unexpected content %q", result.Content)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "echo" {
		t.Errorf("expected one recorded tool call, got %+v", result.ToolCalls)
	}
	// Usage accumulates across both completions.
	if result.Usage == nil || result.Usage.TotalTokens != 20 {
		t.Errorf("expected accumulated usage of 20 tokens, got %+v", result.Usage)
	}

	// Second request must carry the tool response back to the model.
	if len(provider.requests) != 2 {
		t.Fatalf("expected 2 completion requests, got %d", len(provider.requests))
	}
	secondReq := provider.requests[1].Messages
	last := secondReq[len(secondReq)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call-1" {
		t.Errorf("expected trailing tool message for call-1, got %+v", last)
	}
	if last.Content != "echo: hello" {
		t.Errorf("expected tool output in message, got %q", last.Content)
	}

	// Turn history includes the tool call and its response.
	var sawCall, sawResponse bool
	for _, msg := range result.Messages {
		if len(msg.ToolCalls) > 0 {
			sawCall = true
		}
		if msg.Role == "tool" {
			sawResponse = true
		}
	}
	if !sawCall || !sawResponse {
		t.Errorf("expected tool call and response in history, got %+v", result.Messages)
	}

	if len(metrics.calls) != 1 || metrics.calls[0] != (recordedToolCall{name: "echo", status: "success"}) {
		t.Errorf("expected one successful tool-call metric, got %+v", metrics.calls)
	}
}

func TestAssistantAgent_ToolFailureSurfacesAsText(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*llm.CompletionResponse{
			{
				ToolCalls: []llm.ToolCall{
					{ID: "call-1", Name: "missing_tool", Arguments: `{}`},
				},
				FinishReason: llm.FinishReasonToolCalls,
			},
			{Content: "could not run the tool", FinishReason: llm.FinishReasonStop},
		},
	}

	a, err := New(Config{Name: "WeatherAgent", Model: "test-model"}, provider, tools.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := a.OnMessages(context.Background(), []Message{
		{Role: "user", Content: "go", Sender: "user"},
	}, "user")
	if err != nil {
		t.Fatalf("tool failure must not fail the turn: %v", err)
	}
	if result.Content != "could not run the tool" {
		t.Errorf("unexpected content %q", result.Content)
	}

	// The failure went back to the model as a readable string.
	secondReq := provider.requests[1].Messages
	last := secondReq[len(secondReq)-1]
	if !strings.HasPrefix(last.Content, "Error:") {
		t.Errorf("expected error text in tool message, got %q", last.Content)
	}
}

func TestAssistantAgent_CompletionError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("boom")}

	a, err := New(Config{Name: "PlanningAgent", Model: "test-model"}, provider, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = a.OnMessages(context.Background(), []Message{{Role: "user", Content: "go"}}, "user")
	if err == nil {
		t.Fatal("expected completion error to surface")
	}
	if !strings.Contains(err.Error(), "PlanningAgent") {
		t.Errorf("expected error to name the agent, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	provider := &scriptedProvider{}

	if _, err := New(Config{Name: "A"}, nil, nil, nil); err == nil {
		t.Error("expected error for missing provider")
	}
	if _, err := New(Config{}, provider, nil, nil); err == nil {
		t.Error("expected error for missing name")
	}
}
