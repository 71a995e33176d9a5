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

// Package agent defines the conversational agents that make up a team and
// the message types they exchange.
package agent

import (
	"context"
)

// Message is a single entry in an agent conversation.
type Message struct {
	// Role is the chat role: system, user, assistant, or tool.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Sender names the agent or participant that produced the message.
	Sender string `json:"sender,omitempty"`

	// ToolCalls holds tool invocations requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// TokenUsage tracks token consumption for a single turn.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TaskResult is the outcome of one agent turn.
type TaskResult struct {
	// Content is the final text the agent produced for this turn.
	Content string `json:"content"`

	// Messages are the new messages the turn added to the conversation,
	// including intermediate tool calls and tool responses.
	Messages []Message `json:"messages"`

	// Usage is the token consumption for the turn, when the underlying
	// model reports it.
	Usage *TokenUsage `json:"usage,omitempty"`

	// ToolCalls lists the tool invocations the agent made during the turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// MessageHandler is the capability a team member must provide: given the
// conversation so far, produce this agent's next turn. Implementations must
// be safe to call from the goroutine running the team loop.
type MessageHandler interface {
	// Name returns the agent's unique name within its team.
	Name() string

	// OnMessages handles a batch of incoming messages and returns the
	// agent's turn result. sender names the participant whose message
	// triggered this turn; it may be empty for the opening task.
	OnMessages(ctx context.Context, messages []Message, sender string) (*TaskResult, error)
}
