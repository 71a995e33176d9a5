package llm

import (
	"strings"
	"testing"
)

func TestAPIKeyCredentials_Validate(t *testing.T) {
	valid := APIKeyCredentials{APIKey: "sk-test-12345678"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}

	empty := APIKeyCredentials{}
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestAPIKeyCredentials_Redacted(t *testing.T) {
	creds := APIKeyCredentials{APIKey: "sk-abcdefghijklmnop"}
	redacted := creds.Redacted()

	if strings.Contains(redacted, "abcdefghijklm") {
		t.Errorf("redacted form leaks the key: %q", redacted)
	}
	// Leading and trailing characters remain for identification.
	if !strings.Contains(redacted, "sk-a") {
		t.Errorf("expected key prefix in redacted form, got %q", redacted)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"empty", "", "(empty)"},
		{"short", "abc", "***"},
		{"exact boundary", "12345678", "********"},
		{"long", "sk-abcdefghijklmnop", "sk-a***********mnop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q): expected %q, got %q", tt.secret, tt.want, got)
			}
		})
	}
}

func TestTokenUsage_Add(t *testing.T) {
	total := TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	total.Add(TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})

	if total.PromptTokens != 13 || total.CompletionTokens != 7 || total.TotalTokens != 20 {
		t.Errorf("unexpected accumulated usage: %+v", total)
	}
}
