package ai

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"confidence": 8}`,
			expected: `{"confidence": 8}`,
		},
		{
			name:     "JSON with markdown code blocks",
			input:    "```json\n{\"confidence\": 8}\n```",
			expected: `{"confidence": 8}`,
		},
		{
			name:     "JSON with explanatory text before",
			input:    "Here is my evaluation:\n{\"confidence\": 8}",
			expected: `{"confidence": 8}`,
		},
		{
			name:     "JSON with text before and after",
			input:    "Evaluation:\n{\"confidence\": 8, \"flag\": false}\nDone.",
			expected: `{"confidence": 8, "flag": false}`,
		},
		{
			name:     "no JSON at all",
			input:    "I cannot evaluate this.",
			expected: "I cannot evaluate this.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cleanJSONResponse(tt.input)
			if result != tt.expected {
				t.Errorf("Expected:\n%s\n\nGot:\n%s", tt.expected, result)
			}
		})
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name         string
		provider     string
		model        string
		wantProvider string
		wantModel    string
	}{
		{"valid openai pair", "openai", "gpt-4o", "openai", "gpt-4o"},
		{"valid anthropic pair", "anthropic", "claude-opus-4-6", "anthropic", "claude-opus-4-6"},
		{"unknown provider falls back to openai", "mistral", "whatever", "openai", "gpt-4o"},
		{"model from wrong provider falls back to first model", "anthropic", "gpt-4o", "anthropic", "claude-sonnet-4-6"},
		{"unknown model falls back to first model", "openai", "gpt-99", "openai", "gpt-4o"},
		{"empty pair falls back to defaults", "", "", "openai", "gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model := ResolveModel(tt.provider, tt.model, testLogger())
			if provider != tt.wantProvider || model != tt.wantModel {
				t.Errorf("ResolveModel(%q, %q) = (%q, %q), want (%q, %q)",
					tt.provider, tt.model, provider, model, tt.wantProvider, tt.wantModel)
			}
		})
	}
}

func TestProviderFor(t *testing.T) {
	client := NewClient("openai-key", "anthropic-key", testLogger())

	p, err := client.ProviderFor("anthropic", "claude-sonnet-4-6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*AnthropicClient); !ok {
		t.Errorf("expected *AnthropicClient, got %T", p)
	}

	p, err = client.ProviderFor("nonsense", "nonsense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*OpenAIClient); !ok {
		t.Errorf("expected fallback to *OpenAIClient, got %T", p)
	}
}

func TestProviderFor_MissingAnthropicKey(t *testing.T) {
	client := NewClient("openai-key", "", testLogger())
	if _, err := client.ProviderFor("anthropic", "claude-sonnet-4-6"); err == nil {
		t.Error("expected error when anthropic key is missing")
	}
}

func chatCompletionsStub(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := `{"choices":[{"message":{"content":` + jsonString(content) + `}}]}`
		w.Write([]byte(body))
	}))
}

func jsonString(s string) string {
	out := `"`
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\\':
			out += `\\`
		case '\n':
			out += `\n`
		default:
			out += string(r)
		}
	}
	return out + `"`
}

func TestEvaluateResponse_MalformedOutputUsesSafeDefault(t *testing.T) {
	srv := chatCompletionsStub(t, "sorry, I can't produce JSON today")
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o")
	client.httpClient = srv.Client()
	client.apiURL = srv.URL

	eval, err := client.EvaluateResponse(t.Context(), "my message", "draft reply", "Ideation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Confidence != 3 {
		t.Errorf("expected safe-default confidence 3, got %d", eval.Confidence)
	}
	if !eval.Flag {
		t.Error("expected safe default to be flagged")
	}
	if eval.FlagReason != "Failed to parse evaluation response" {
		t.Errorf("unexpected flag reason: %s", eval.FlagReason)
	}
	if eval.DetectedStage != "Ideation" {
		t.Errorf("expected detected stage to fall back to user stage, got %s", eval.DetectedStage)
	}
}

func TestEvaluateResponse_ValidOutput(t *testing.T) {
	// The evaluator also returns summary_update, which nothing downstream
	// consumes; decoding must ignore it.
	srv := chatCompletionsStub(t, "```json\n{\"confidence\": 9, \"flag\": false, \"detected_stage\": \"Growth\", \"stage_changed\": true, \"summary_update\": \"Raised prices this week.\"}\n```")
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o")
	client.httpClient = srv.Client()
	client.apiURL = srv.URL

	eval, err := client.EvaluateResponse(t.Context(), "my message", "draft reply", "Late Validation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Confidence != 9 || eval.Flag {
		t.Errorf("unexpected evaluation: %+v", eval)
	}
	if eval.DetectedStage != "Growth" || !eval.StageChanged {
		t.Errorf("expected stage change to Growth, got %+v", eval)
	}
}

func TestConfirmIntent(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"plain yes", "yes", true},
		{"capitalized yes with period", "Yes.", true},
		{"plain no", "no", false},
		{"hedged answer", "maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatCompletionsStub(t, tt.answer)
			defer srv.Close()

			client := NewOpenAIClient("test-key", "gpt-4o")
			client.httpClient = srv.Client()
			client.apiURL = srv.URL

			got, err := client.ConfirmIntent(t.Context(), "please stop emailing me for a while", "pause")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ConfirmIntent with answer %q = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestAnalyzeSatisfaction_ClampsRange(t *testing.T) {
	srv := chatCompletionsStub(t, "12")
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o")
	client.httpClient = srv.Client()
	client.apiURL = srv.URL

	score, err := client.AnalyzeSatisfaction(t.Context(), "this has been amazing!!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 10 {
		t.Errorf("expected score clamped to 10, got %v", score)
	}
}
