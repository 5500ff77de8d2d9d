package ai

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed prompts/assistant_instructions.md
var assistantInstructions string

//go:embed prompts/evaluation_prompt.md
var evaluationPrompt string

// Provider is the coaching generation capability. Generation and check-in
// questions follow the configured provider; everything else runs on OpenAI.
type Provider interface {
	GenerateResponse(ctx context.Context, userContext string) (string, error)
	GenerateCheckinQuestion(ctx context.Context, userContext string) (string, error)
}

// Evaluation is the structured review of a draft coaching reply.
type Evaluation struct {
	Confidence         int                    `json:"confidence"`
	Flag               bool                   `json:"flag"`
	FlagReason         string                 `json:"flag_reason"`
	DetectedStage      string                 `json:"detected_stage"`
	StageChanged       bool                   `json:"stage_changed"`
	ResourceReferenced string                 `json:"resource_referenced"`
	SubScores          map[string]interface{} `json:"sub_scores"`
}

func safeEvaluation(userStage string) *Evaluation {
	return &Evaluation{
		Confidence:    3,
		Flag:          true,
		FlagReason:    "Failed to parse evaluation response",
		DetectedStage: userStage,
		StageChanged:  false,
	}
}

// Client routes coaching generation to the configured provider and exposes
// the OpenAI-only utility calls.
type Client struct {
	openAIKey    string
	anthropicKey string
	utility      *OpenAIClient
	log          *logrus.Logger
}

func NewClient(openAIKey, anthropicKey string, log *logrus.Logger) *Client {
	return &Client{
		openAIKey:    openAIKey,
		anthropicKey: anthropicKey,
		utility:      NewOpenAIClient(openAIKey, evalModel),
		log:          log,
	}
}

// ProviderFor resolves the configured (provider, model) pair against the
// registry and returns a bound generation provider.
func (c *Client) ProviderFor(provider, model string) (Provider, error) {
	provider, model = ResolveModel(provider, model, c.log)
	switch provider {
	case "anthropic":
		if c.anthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider configured but ANTHROPIC_API_KEY is not set")
		}
		return NewAnthropicClient(c.anthropicKey, model), nil
	default:
		return NewOpenAIClient(c.openAIKey, model), nil
	}
}

func (c *Client) EvaluateResponse(ctx context.Context, userMessage, aiResponse, userStage string) (*Evaluation, error) {
	return c.utility.EvaluateResponse(ctx, userMessage, aiResponse, userStage)
}

func (c *Client) ConfirmIntent(ctx context.Context, message, candidate string) (bool, error) {
	return c.utility.ConfirmIntent(ctx, message, candidate)
}

func (c *Client) AnalyzeSatisfaction(ctx context.Context, message string) (float64, error) {
	return c.utility.AnalyzeSatisfaction(ctx, message)
}

func (c *Client) GenerateSummaryUpdate(ctx context.Context, currentSummary, userMessage, coachResponse string) (string, error) {
	return c.utility.GenerateSummaryUpdate(ctx, currentSummary, userMessage, coachResponse)
}

func (c *Client) ParseEmailFallback(ctx context.Context, rawEmail string) (string, error) {
	return c.utility.ParseEmailFallback(ctx, rawEmail)
}

func checkinPrompt(userContext string) string {
	return fmt.Sprintf(`You are Wes, an entrepreneurship coach. Generate a personalized check-in message for this member.
Keep it short (2-4 sentences). Reference what they've been working on recently. Ask a specific question that moves them forward.
Do NOT use bullet points or numbered lists. Write in a natural, conversational tone.
Do NOT include a sign-off like "Wes" - that will be added automatically.

%s`, userContext)
}

// cleanJSONResponse strips markdown fences and surrounding prose by cutting
// the content down to the outermost JSON object.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx == -1 || endIdx == -1 || startIdx > endIdx {
		return content
	}
	return strings.TrimSpace(content[startIdx : endIdx+1])
}
