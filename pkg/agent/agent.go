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
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tombee/ensemble/pkg/llm"
	"github.com/tombee/ensemble/pkg/tools"
)

// maxToolRounds bounds the model/tool loop within a single turn so a
// misbehaving model cannot spin forever.
const maxToolRounds = 8

// ToolMetrics receives per-call tool execution outcomes.
type ToolMetrics interface {
	RecordToolCall(ctx context.Context, toolName, status string, duration time.Duration)
}

// Config describes an assistant agent.
type Config struct {
	// Name is the agent's unique name within its team.
	Name string

	// Description tells the team selector what the agent is for.
	Description string

	// SystemPrompt is prepended to every completion request.
	SystemPrompt string

	// Model is the model identifier passed to the provider.
	Model string
}

// AssistantAgent is an LLM-backed team member. Each turn it sends the
// conversation to its provider, executes any tool calls the model requests,
// and repeats until the model produces plain text.
type AssistantAgent struct {
	cfg      Config
	provider llm.Provider
	registry *tools.Registry
	logger   *slog.Logger
	metrics  ToolMetrics
}

// SetMetrics attaches an optional tool-call metrics sink.
func (a *AssistantAgent) SetMetrics(m ToolMetrics) {
	a.metrics = m
}

// New creates an assistant agent. The registry may be nil for agents
// without tools.
func New(cfg Config, provider llm.Provider, registry *tools.Registry, logger *slog.Logger) (*AssistantAgent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("agent %q requires an LLM provider", cfg.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantAgent{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		logger:   logger.With("agent", cfg.Name),
	}, nil
}

// Name returns the agent's name.
func (a *AssistantAgent) Name() string {
	return a.cfg.Name
}

// Description returns the agent's selector-facing description.
func (a *AssistantAgent) Description() string {
	return a.cfg.Description
}

// OnMessages runs one turn: completion, tool execution, and follow-up
// completions until the model stops requesting tools.
func (a *AssistantAgent) OnMessages(ctx context.Context, messages []Message, sender string) (*TaskResult, error) {
	conversation := a.buildConversation(messages)

	result := &TaskResult{}
	usage := llm.TokenUsage{}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
			Messages: conversation,
			Model:    a.cfg.Model,
			Tools:    a.toolDefinitions(),
		})
		if err != nil {
			return nil, fmt.Errorf("agent %s: completion failed: %w", a.cfg.Name, err)
		}
		usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			result.Content = resp.Content
			result.Messages = append(result.Messages, Message{
				Role:    "assistant",
				Content: resp.Content,
				Sender:  a.cfg.Name,
			})
			result.Usage = &TokenUsage{
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				TotalTokens:      usage.TotalTokens,
			}
			return result, nil
		}

		assistantMsg := llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Content,
		}
		callRecord := Message{
			Role:    "assistant",
			Content: resp.Content,
			Sender:  a.cfg.Name,
		}
		for _, tc := range resp.ToolCalls {
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, tc)
			call := ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
			callRecord.ToolCalls = append(callRecord.ToolCalls, call)
			result.ToolCalls = append(result.ToolCalls, call)
		}
		conversation = append(conversation, assistantMsg)
		result.Messages = append(result.Messages, callRecord)

		for _, tc := range resp.ToolCalls {
			output := a.executeTool(ctx, tc)
			conversation = append(conversation, llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
			result.Messages = append(result.Messages, Message{
				Role:       "tool",
				Content:    output,
				Sender:     a.cfg.Name,
				ToolCallID: tc.ID,
			})
		}
	}

	return nil, fmt.Errorf("agent %s: exceeded %d tool rounds without a final answer", a.cfg.Name, maxToolRounds)
}

// buildConversation converts team messages to provider messages, with the
// system prompt first.
func (a *AssistantAgent) buildConversation(messages []Message) []llm.Message {
	conversation := make([]llm.Message, 0, len(messages)+1)
	if a.cfg.SystemPrompt != "" {
		conversation = append(conversation, llm.Message{
			Role:    llm.RoleSystem,
			Content: a.cfg.SystemPrompt,
		})
	}
	for _, msg := range messages {
		role := llm.MessageRole(msg.Role)
		switch role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool:
		default:
			role = llm.RoleUser
		}
		// Other agents' turns arrive as user messages so the model sees
		// them as conversation input rather than its own prior output.
		if msg.Sender != "" && msg.Sender != a.cfg.Name && role == llm.RoleAssistant {
			role = llm.RoleUser
		}
		conversation = append(conversation, llm.Message{
			Role:       role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Sender,
		})
	}
	return conversation
}

// toolDefinitions exposes the agent's registry as provider tool schemas.
func (a *AssistantAgent) toolDefinitions() []llm.Tool {
	if a.registry == nil {
		return nil
	}
	var defs []llm.Tool
	for _, t := range a.registry.List() {
		defs = append(defs, llm.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// executeTool runs one tool call and renders its output for the model.
// Tool failures are reported back to the model as text so it can recover.
func (a *AssistantAgent) executeTool(ctx context.Context, tc llm.ToolCall) string {
	if a.registry == nil {
		return fmt.Sprintf("Error: agent %s has no tools registered", a.cfg.Name)
	}

	var args map[string]any
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			a.logger.Warn("failed to parse tool arguments", "tool", tc.Name, "error", err)
			return fmt.Sprintf("Error: invalid arguments for tool %s: %v", tc.Name, err)
		}
	}

	start := time.Now()
	output, err := a.registry.Execute(ctx, tc.Name, args)
	if err != nil {
		a.recordToolCall(ctx, tc.Name, "error", time.Since(start))
		a.logger.Warn("tool execution failed", "tool", tc.Name, "error", err)
		return fmt.Sprintf("Error: tool %s failed: %v", tc.Name, err)
	}
	a.recordToolCall(ctx, tc.Name, "success", time.Since(start))

	if text, ok := output["output"].(string); ok {
		return text
	}
	rendered, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("Error: tool %s returned unserializable output", tc.Name)
	}
	return string(rendered)
}

func (a *AssistantAgent) recordToolCall(ctx context.Context, name, status string, duration time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordToolCall(ctx, name, status, duration)
	}
}

// Compile-time check that AssistantAgent implements MessageHandler
var _ MessageHandler = (*AssistantAgent)(nil)
