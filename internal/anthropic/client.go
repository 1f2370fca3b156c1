// Package anthropic is a minimal client for the Messages API. Only the
// assistant text and token counts are consumed by the rest of the program.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	// APIKeyEnv names the credential variable; it must be present at
	// startup and is stripped from every executed command's environment.
	APIKeyEnv = "ANTHROPIC_API_KEY"

	// DefaultEndpoint is the production Messages endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"

	apiVersion = "2023-06-01"
)

// Message is one prior turn in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the Messages API payload.
type Request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// Usage carries the token counts reported with a response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Reply is the slice of the API response the core consumes.
type Reply struct {
	Text   string
	Tokens int
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage Usage `json:"usage"`
}

// Client calls the Messages endpoint with a fixed timeout.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *log.Logger
}

// NewClient configures a Messages client.
func NewClient(endpoint, apiKey string, timeout time.Duration, logger *log.Logger) *Client {
	trimmed := strings.TrimRight(endpoint, "/")
	if trimmed == "" {
		trimmed = DefaultEndpoint
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   trimmed,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Messages sends one request and returns the assistant text plus the total
// token count for the interaction.
func (c *Client) Messages(ctx context.Context, reqPayload Request) (Reply, error) {
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

	c.logger.Printf("[anthropic] sending %d messages to model %s", len(reqPayload.Messages), reqPayload.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("read response: %w", err)
	}
	c.logger.Printf("[anthropic] response status: %d, size: %d bytes", resp.StatusCode, len(respBody))

	if resp.StatusCode >= 300 {
		return Reply{}, fmt.Errorf("api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Reply{}, fmt.Errorf("parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Reply{}, fmt.Errorf("no text content in response")
	}

	return Reply{
		Text:   text.String(),
		Tokens: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}
