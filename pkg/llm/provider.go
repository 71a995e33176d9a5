// Package llm provides abstractions for Large Language Model providers.
// This package is designed to be embeddable in other Go applications and
// provides a provider-agnostic interface for chat completions.
package llm

import (
	"context"
)

// Provider defines the interface that all LLM providers must implement.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g., "openai").
	Name() string

	// Complete sends a synchronous completion request and returns the full
	// response. This method blocks until the LLM response is complete.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains all parameters for a completion request.
type CompletionRequest struct {
	// Messages is the conversation history including the current prompt.
	Messages []Message

	// Model specifies which model to use.
	Model string

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature *float64

	// MaxTokens limits the response length. If nil, uses provider default.
	MaxTokens *int

	// Tools defines available functions the model can call.
	Tools []Tool
}

// Message represents a single message in a conversation.
type Message struct {
	// Role indicates who sent this message (system, user, assistant, tool).
	Role MessageRole

	// Content is the text content of the message.
	Content string

	// ToolCalls contains any tool invocations made by the assistant.
	// Only valid when Role is "assistant".
	ToolCalls []ToolCall

	// ToolCallID links this message to a specific tool call.
	// Only valid when Role is "tool".
	ToolCallID string

	// Name identifies the tool that produced this result.
	// Only valid when Role is "tool".
	Name string
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	// RoleSystem indicates a system message (context, instructions).
	RoleSystem MessageRole = "system"

	// RoleUser indicates a message from the user.
	RoleUser MessageRole = "user"

	// RoleAssistant indicates a message from the LLM.
	RoleAssistant MessageRole = "assistant"

	// RoleTool indicates a tool execution result.
	RoleTool MessageRole = "tool"
)

// ToolCall represents a function invocation by the LLM.
type ToolCall struct {
	// ID uniquely identifies this tool call within a completion.
	ID string

	// Name is the function name to invoke.
	Name string

	// Arguments contains the JSON-encoded function parameters.
	Arguments string
}

// Tool defines a function the LLM can invoke.
type Tool struct {
	// Name is the function identifier.
	Name string

	// Description tells the model what the function does.
	Description string

	// Parameters is the JSON schema for the function's inputs.
	Parameters any
}

// CompletionResponse is the full result of a completion request.
type CompletionResponse struct {
	// Content is the assistant's text response.
	Content string

	// ToolCalls are functions the model wants to execute.
	ToolCalls []ToolCall

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason

	// Usage tracks token consumption for this request.
	Usage TokenUsage

	// Model is the model that produced the response.
	Model string

	// RequestID is the provider-assigned request identifier.
	RequestID string
}

// FinishReason indicates why a completion ended.
type FinishReason string

const (
	// FinishReasonStop indicates natural completion.
	FinishReasonStop FinishReason = "stop"

	// FinishReasonLength indicates the token limit was reached.
	FinishReasonLength FinishReason = "length"

	// FinishReasonToolCalls indicates the model wants to call tools.
	FinishReasonToolCalls FinishReason = "tool_calls"
)

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates usage from another request.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
