package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient talks to the Anthropic messages API. Coaching generation
// only; the utility calls stay on OpenAI.
type AnthropicClient struct {
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = Providers["anthropic"][0]
	}
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		apiURL: anthropicAPIURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

func (c *AnthropicClient) messages(ctx context.Context, req anthropicRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
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
		return "", fmt.Errorf("Anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}
	return apiResp.Content[0].Text, nil
}

// GenerateResponse generates a coaching reply from the assembled context.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, userContext string) (string, error) {
	out, err := c.messages(ctx, anthropicRequest{
		Model:  c.model,
		System: assistantInstructions,
		Messages: []chatMessage{
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
func (c *AnthropicClient) GenerateCheckinQuestion(ctx context.Context, userContext string) (string, error) {
	out, err := c.messages(ctx, anthropicRequest{
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
