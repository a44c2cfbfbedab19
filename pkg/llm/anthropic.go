package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// Anthropic defaults
const (
	DefaultAnthropicModel     = "claude-sonnet-4-5-20250929"
	DefaultAnthropicMaxTokens = 2000
	DefaultAnthropicTimeout   = 120 * time.Second
)

// AnthropicMessager is the slice of the SDK client the backend uses
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicBackend calls the hosted Messages API
type AnthropicBackend struct {
	messages  AnthropicMessager
	model     string
	maxTokens int64
	logger    *logrus.Logger
}

// NewAnthropicBackend creates a hosted backend. An API key is required.
func NewAnthropicBackend(cfg domain.AnthropicConfig, logger *logrus.Logger) (*AnthropicBackend, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, domain.NewConfigurationError("llm.anthropic.api_key", "ANTHROPIC_API_KEY not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAnthropicTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return NewAnthropicBackendWithMessager(&client.Messages, cfg, logger), nil
}

// NewAnthropicBackendWithMessager wires a backend around an existing messages client
func NewAnthropicBackendWithMessager(messages AnthropicMessager, cfg domain.AnthropicConfig, logger *logrus.Logger) *AnthropicBackend {
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultAnthropicMaxTokens
	}
	return &AnthropicBackend{
		messages:  messages,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		logger:    logger,
	}
}

// Name identifies the backend in logs and health output
func (a *AnthropicBackend) Name() string {
	return domain.ProviderAnthropic
}

// Complete sends prompt as a single user message at temperature 0 and
// concatenates the text blocks of the reply
func (a *AnthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", domain.NewBackendUnavailableError(a.Name(), apiErr.StatusCode, "messages API error", err)
		}
		return "", domain.NewBackendUnavailableError(a.Name(), 0, "request failed", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}

	a.logger.WithFields(logrus.Fields{
		"model":         a.model,
		"duration_ms":   time.Since(start).Milliseconds(),
		"output_tokens": resp.Usage.OutputTokens,
		"stop_reason":   string(resp.StopReason),
	}).Debug("Anthropic completion finished")

	return sb.String(), nil
}
