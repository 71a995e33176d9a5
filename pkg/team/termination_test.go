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
	"strings"
	"testing"

	"github.com/tombee/ensemble/pkg/agent"
)

func TestTextMentionTermination(t *testing.T) {
	cond := TextMentionTermination("TERMINATE")

	stop, _ := cond.ShouldStop(nil)
	if stop {
		t.Error("empty history must not stop")
	}

	stop, _ = cond.ShouldStop([]agent.Message{
		{Content: "still working"},
	})
	if stop {
		t.Error("unrelated message must not stop")
	}

	// Only the latest message is checked.
	stop, _ = cond.ShouldStop([]agent.Message{
		{Content: "all done. TERMINATE"},
		{Content: "one more thing"},
	})
	if stop {
		t.Error("marker in an earlier message must not stop")
	}

	stop, reason := cond.ShouldStop([]agent.Message{
		{Content: "one more thing"},
		{Content: "all done. TERMINATE"},
	})
	if !stop {
		t.Fatal("expected stop when latest message contains marker")
	}
	if !strings.Contains(reason, "TERMINATE") {
		t.Errorf("expected reason to name the marker, got %q", reason)
	}
}

func TestMaxMessageTermination(t *testing.T) {
	cond := MaxMessageTermination(3)

	messages := []agent.Message{{Content: "1"}, {Content: "2"}}
	if stop, _ := cond.ShouldStop(messages); stop {
		t.Error("below the cap must not stop")
	}

	messages = append(messages, agent.Message{Content: "3"})
	stop, reason := cond.ShouldStop(messages)
	if !stop {
		t.Fatal("expected stop at the cap")
	}
	if !strings.Contains(reason, "3") {
		t.Errorf("expected reason to name the cap, got %q", reason)
	}
}

func TestOrCondition(t *testing.T) {
	cond := Or(TextMentionTermination("TERMINATE"), MaxMessageTermination(2))

	if stop, _ := cond.ShouldStop([]agent.Message{{Content: "hi"}}); stop {
		t.Error("neither condition met, must not stop")
	}

	stop, reason := cond.ShouldStop([]agent.Message{{Content: "TERMINATE"}})
	if !stop {
		t.Fatal("expected text condition to fire")
	}
	if !strings.Contains(reason, "TERMINATE") {
		t.Errorf("unexpected reason %q", reason)
	}

	stop, reason = cond.ShouldStop([]agent.Message{{Content: "a"}, {Content: "b"}})
	if !stop {
		t.Fatal("expected message cap to fire")
	}
	if !strings.Contains(reason, "maximum") {
		t.Errorf("unexpected reason %q", reason)
	}
}
