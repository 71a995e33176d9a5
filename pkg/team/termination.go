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

// Package team runs multi-agent conversations: a selector chooses which
// agent speaks next until a termination condition fires.
package team

import (
	"fmt"
	"strings"

	"github.com/tombee/ensemble/pkg/agent"
)

// Condition decides whether a conversation should stop. Conditions are
// checked after every turn against the full message history.
type Condition interface {
	// ShouldStop reports whether the conversation is finished, and why.
	ShouldStop(messages []agent.Message) (bool, string)
}

// TextMentionCondition stops when any message contains a marker string.
type TextMentionCondition struct {
	text string
}

// TextMentionTermination stops the conversation once an agent emits the
// given marker, e.g. "TERMINATE".
func TextMentionTermination(text string) *TextMentionCondition {
	return &TextMentionCondition{text: text}
}

func (c *TextMentionCondition) ShouldStop(messages []agent.Message) (bool, string) {
	if len(messages) == 0 {
		return false, ""
	}
	last := messages[len(messages)-1]
	if strings.Contains(last.Content, c.text) {
		return true, fmt.Sprintf("text %q mentioned", c.text)
	}
	return false, ""
}

// MaxMessageCondition stops once the history reaches a message count.
type MaxMessageCondition struct {
	max int
}

// MaxMessageTermination stops the conversation after max messages,
// including the opening task.
func MaxMessageTermination(max int) *MaxMessageCondition {
	return &MaxMessageCondition{max: max}
}

func (c *MaxMessageCondition) ShouldStop(messages []agent.Message) (bool, string) {
	if len(messages) >= c.max {
		return true, fmt.Sprintf("maximum number of messages (%d) reached", c.max)
	}
	return false, ""
}

// OrCondition stops when any of its conditions fires.
type OrCondition struct {
	conditions []Condition
}

// Or combines conditions; the first to fire ends the conversation.
func Or(conditions ...Condition) *OrCondition {
	return &OrCondition{conditions: conditions}
}

func (c *OrCondition) ShouldStop(messages []agent.Message) (bool, string) {
	for _, cond := range c.conditions {
		if stop, reason := cond.ShouldStop(messages); stop {
			return true, reason
		}
	}
	return false, ""
}
