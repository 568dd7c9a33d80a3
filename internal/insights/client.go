package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
	defaultTimeout     = 60 * time.Second
)

const systemPrompt = "You are a data analyst. Respond with a single JSON object containing exactly these keys: " +
	`"summary" (string), "key_columns" (array of strings), "correlation_insights" (string), "recommendations" (array of strings). No other keys.`

// Completer produces a chat completion for a prompt. Implemented by
// OpenAIClient; tests substitute a stub.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // "gpt-4o-mini" (default)
	MaxTokens   int           // Completion token budget
	Temperature float64       // Low by default to favor determinism
	Timeout     time.Duration // HTTP timeout
	BaseURL     string        // Optional (tests)
	HTTPClient  *http.Client  // Optional (tests)
}

// OpenAIClient implements Completer using the official OpenAI SDK in JSON mode.
type OpenAIClient struct {
	model       string
	maxTokens   int64
	temperature float64
	client      openai.Client
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		client:      openai.NewClient(opts...),
	}
}

// Complete requests a JSON-mode chat completion and returns the raw content.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model.
func (c *OpenAIClient) Model() string {
	return c.model
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI chat error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI chat error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ Completer = (*OpenAIClient)(nil)
