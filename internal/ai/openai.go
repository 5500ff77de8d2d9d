package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	openAIAPIURL = "https://api.openai.com/v1/chat/completions"
)

// OpenAIClient talks to the OpenAI chat completions API. It is both a
// coaching Provider and the backend for the utility calls (evaluation,
// intent, satisfaction, summary, parse fallback), which always run on
// OpenAI regardless of the configured coaching provider.
type OpenAIClient struct {
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		apiURL: openAIAPIURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second, // LLM calls can be slow
		},
	}
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *OpenAIClient) chat(ctx context.Context, req chatRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// GenerateResponse generates a coaching reply from the assembled context.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, userContext string) (string, error) {
	out, err := c.chat(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: assistantInstructions},
			{Role: "user", Content: userContext},
		},
		Temperature: 0.7,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GenerateCheckinQuestion generates a short personalized check-in message.
func (c *OpenAIClient) GenerateCheckinQuestion(ctx context.Context, userContext string) (string, error) {
	out, err := c.chat(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: checkinPrompt(userContext)},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// EvaluateResponse reviews a draft coaching reply. Malformed model output
// degrades to a safe low-confidence, flagged evaluation instead of an error.
func (c *OpenAIClient) EvaluateResponse(ctx context.Context, userMessage, aiResponse, userStage string) (*Evaluation, error) {
	prompt := strings.NewReplacer(
		"{{user_message}}", userMessage,
		"{{ai_response}}", aiResponse,
		"{{user_stage}}", userStage,
	).Replace(evaluationPrompt)

	out, err := c.chat(ctx, chatRequest{
		Model: evalModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(cleanJSONResponse(out)), &eval); err != nil {
		return safeEvaluation(userStage), nil
	}
	if eval.Confidence < 1 || eval.Confidence > 10 {
		return safeEvaluation(userStage), nil
	}
	return &eval, nil
}

// ConfirmIntent asks whether a message really expresses the candidate
// intent ("pause" or "resume"). Ambiguous output counts as no.
func (c *OpenAIClient) ConfirmIntent(ctx context.Context, message, candidate string) (bool, error) {
	prompt := fmt.Sprintf(`A member of a coaching program sent the email below. Does the member clearly ask to %s their coaching emails? Answer with exactly one word: yes or no.

Email:
%s`, candidate, message)

	out, err := c.chat(ctx, chatRequest{
		Model: evalModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(out)), "yes"), nil
}

// AnalyzeSatisfaction scores how satisfied the member sounds, 1-10.
func (c *OpenAIClient) AnalyzeSatisfaction(ctx context.Context, message string) (float64, error) {
	prompt := fmt.Sprintf(`Rate how satisfied and engaged this coaching program member sounds in their email, on a scale of 1 to 10 (1 = frustrated or checked out, 10 = energized and making progress). Respond with only the number.

Email:
%s`, message)

	out, err := c.chat(ctx, chatRequest{
		Model: evalModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse satisfaction score %q: %w", out, err)
	}
	if score < 1 {
		score = 1
	} else if score > 10 {
		score = 10
	}
	return score, nil
}

// GenerateSummaryUpdate produces a 1-2 sentence addition to the member's
// journey summary from the latest exchange.
func (c *OpenAIClient) GenerateSummaryUpdate(ctx context.Context, currentSummary, userMessage, coachResponse string) (string, error) {
	if currentSummary == "" {
		currentSummary = "No previous summary"
	}
	prompt := fmt.Sprintf(`You are helping update a user's coaching summary. Based on the recent exchange below, provide a brief 1-2 sentence update to add to their ongoing summary.

Current Summary:
%s

User's Message:
%s

Coach's Response:
%s

Provide only the new summary text to append (1-2 sentences). Focus on key progress, challenges, or direction changes.`, currentSummary, userMessage, coachResponse)

	out, err := c.chat(ctx, chatRequest{
		Model: evalModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.5,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ParseEmailFallback extracts the member's actual message from a raw email
// when the deterministic parser comes up empty.
func (c *OpenAIClient) ParseEmailFallback(ctx context.Context, rawEmail string) (string, error) {
	prompt := fmt.Sprintf(`Extract only the user's actual message from this email. Remove:
- Email signatures
- Previous quoted messages (lines starting with >)
- "On [date], [person] wrote:" headers
- Confidentiality disclaimers
- "Sent from my iPhone" footers
- Any other boilerplate

Return only the user's new content, preserving their formatting.

Email:
%s`, rawEmail)

	out, err := c.chat(ctx, chatRequest{
		Model: evalModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
