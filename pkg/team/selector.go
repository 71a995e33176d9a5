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

package team

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tombee/ensemble/pkg/agent"
	"github.com/tombee/ensemble/pkg/llm"
	"github.com/tombee/ensemble/pkg/observability"
)

// selectorPrompt asks the selector model to name the next speaker.
const selectorPrompt = `You are moderating a conversation between the following participants:

%s

Read the conversation below and select the participant best suited to respond
next. Reply with only that participant's name, nothing else.

Conversation:
%s

Next speaker:`

// Result is the outcome of a finished conversation.
type Result struct {
	// Messages is the full conversation, opening task included.
	Messages []agent.Message

	// StopReason explains which termination condition fired.
	StopReason string

	// Usage is the aggregate token consumption across all turns.
	Usage agent.TokenUsage
}

// Config describes a selector group chat.
type Config struct {
	// Participants are the agents taking part, in registration order.
	Participants []agent.MessageHandler

	// Selector is the model that picks the next speaker each round.
	Selector llm.Provider

	// SelectorModel is the model identifier for selector completions.
	SelectorModel string

	// Termination ends the conversation; required.
	Termination Condition

	// AllowRepeatedSpeaker permits the same agent to take consecutive
	// turns. Off by default, matching the usual group-chat discipline.
	AllowRepeatedSpeaker bool

	// Logger receives per-turn progress; defaults to slog.Default().
	Logger *slog.Logger
}

// SelectorGroupChat coordinates a team of agents. Each round a selector
// model chooses the next speaker from the conversation so far; the chosen
// agent's turn is appended to the shared history.
type SelectorGroupChat struct {
	participants []agent.MessageHandler
	selector     llm.Provider
	model        string
	termination  Condition
	allowRepeat  bool
	tracer       observability.Tracer
	logger       *slog.Logger
}

// New creates a selector group chat. The tracer covers the runtime span for
// each Run call; pass a tracer from the process provider.
func New(cfg Config, tracer observability.Tracer) (*SelectorGroupChat, error) {
	if len(cfg.Participants) == 0 {
		return nil, fmt.Errorf("team requires at least one participant")
	}
	if cfg.Selector == nil {
		return nil, fmt.Errorf("team requires a selector provider")
	}
	if cfg.Termination == nil {
		return nil, fmt.Errorf("team requires a termination condition")
	}
	if tracer == nil {
		return nil, fmt.Errorf("team requires a tracer")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]bool, len(cfg.Participants))
	for _, p := range cfg.Participants {
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate participant name %q", p.Name())
		}
		seen[p.Name()] = true
	}

	return &SelectorGroupChat{
		participants: cfg.Participants,
		selector:     cfg.Selector,
		model:        cfg.SelectorModel,
		termination:  cfg.Termination,
		allowRepeat:  cfg.AllowRepeatedSpeaker,
		tracer:       tracer,
		logger:       logger,
	}, nil
}

// Run executes one conversation starting from task and returns the full
// history once a termination condition fires.
func (g *SelectorGroupChat) Run(ctx context.Context, task string) (*Result, error) {
	runID := uuid.NewString()
	ctx, span := g.tracer.Start(ctx, "AgentTeamRuntime",
		observability.WithSpanKind(observability.SpanKindInternal),
		observability.WithAttributes(map[string]any{
			"task":        task,
			"team.run_id": runID,
		}),
	)
	defer span.End()
	g.logger.Info("starting conversation", "run_id", runID, "task", task)

	result := &Result{
		Messages: []agent.Message{{Role: "user", Content: task, Sender: "user"}},
	}
	lastSpeaker := ""

	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return result, err
		}
		if stop, reason := g.termination.ShouldStop(result.Messages); stop {
			result.StopReason = reason
			span.SetAttributes(map[string]any{
				"team.stop_reason":   reason,
				"team.message_count": len(result.Messages),
				"team.total_tokens":  result.Usage.TotalTokens,
			})
			span.SetStatus(observability.StatusCodeOK, "")
			g.logger.Info("conversation finished", "stop_reason", reason, "messages", len(result.Messages))
			return result, nil
		}

		speaker := g.selectSpeaker(ctx, result.Messages, lastSpeaker)
		g.logger.Debug("selected next speaker", "agent", speaker.Name())

		sender := lastSpeaker
		if sender == "" {
			sender = "user"
		}
		turn, err := speaker.OnMessages(ctx, result.Messages, sender)
		if err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("turn for %s failed: %w", speaker.Name(), err)
		}

		if turn != nil {
			result.Messages = append(result.Messages, turn.Messages...)
			if turn.Usage != nil {
				result.Usage.PromptTokens += turn.Usage.PromptTokens
				result.Usage.CompletionTokens += turn.Usage.CompletionTokens
				result.Usage.TotalTokens += turn.Usage.TotalTokens
			}
		}
		lastSpeaker = speaker.Name()
	}
}

// selectSpeaker asks the selector model for the next participant. Any
// selector failure falls back to the first eligible participant so the
// conversation keeps moving.
func (g *SelectorGroupChat) selectSpeaker(ctx context.Context, messages []agent.Message, lastSpeaker string) agent.MessageHandler {
	candidates := g.eligible(lastSpeaker)
	if len(candidates) == 1 {
		return candidates[0]
	}

	prompt := fmt.Sprintf(selectorPrompt, g.roster(candidates), transcript(messages))
	resp, err := g.selector.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Model:    g.model,
	})
	if err != nil {
		g.logger.Warn("speaker selection failed, falling back to first candidate", "error", err)
		return candidates[0]
	}

	choice := strings.TrimSpace(resp.Content)
	for _, p := range candidates {
		if strings.EqualFold(p.Name(), choice) || strings.Contains(choice, p.Name()) {
			return p
		}
	}
	g.logger.Warn("selector returned unknown participant, falling back", "choice", choice)
	return candidates[0]
}

// eligible filters out the previous speaker unless repeats are allowed.
func (g *SelectorGroupChat) eligible(lastSpeaker string) []agent.MessageHandler {
	if g.allowRepeat || lastSpeaker == "" {
		return g.participants
	}
	var out []agent.MessageHandler
	for _, p := range g.participants {
		if p.Name() != lastSpeaker {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return g.participants
	}
	return out
}

// roster renders participant names and descriptions for the selector.
func (g *SelectorGroupChat) roster(participants []agent.MessageHandler) string {
	var b strings.Builder
	for _, p := range participants {
		desc := ""
		if d, ok := p.(interface{ Description() string }); ok {
			desc = d.Description()
		}
		if desc == "" {
			desc = "no description"
		}
		fmt.Fprintf(&b, "- %s: %s\n", p.Name(), desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

// transcript renders the recent conversation for the selector prompt,
// keeping the last few turns to bound prompt size.
func transcript(messages []agent.Message) string {
	const keep = 10
	start := 0
	if len(messages) > keep {
		start = len(messages) - keep
	}
	var b strings.Builder
	for _, msg := range messages[start:] {
		sender := msg.Sender
		if sender == "" {
			sender = msg.Role
		}
		fmt.Fprintf(&b, "%s: %s\n", sender, msg.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
