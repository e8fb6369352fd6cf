package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoAPIKey is returned by OpenAI when no key is configured.
var ErrNoAPIKey = errors.New("llm: api key not configured")

// OpenAI calls an OpenAI-compatible chat completions endpoint. It makes
// exactly one request per call.
type OpenAI struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
	Log      zerolog.Logger
}

// NewOpenAI returns a client for endpoint with a request timeout.
func NewOpenAI(endpoint, apiKey string, timeout time.Duration, log zerolog.Logger) *OpenAI {
	return &OpenAI{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: timeout},
		Log:      log,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAI) Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if c.APIKey == "" {
		return "", ErrNoAPIKey
	}

	reqBody := chatRequest{Model: model, Messages: messages, MaxTokens: opts.MaxTokens}
	if opts.Temperature != 0 {
		t := opts.Temperature
		reqBody.Temperature = &t
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	start := time.Now()
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("completion error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	c.Log.Debug().
		Str("model", model).
		Dur("elapsed", time.Since(start)).
		Int("response_len", len(text)).
		Msg("completion")
	return text, nil
}
