package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// Ollama defaults
const (
	DefaultOllamaBaseURL    = "http://localhost:11434"
	DefaultOllamaModel      = "llama3.1:8b"
	DefaultOllamaTimeout    = 120 * time.Second
	DefaultOllamaNumPredict = 2000
)

// maxResponseBytes bounds how much of a generate response is read
const maxResponseBytes = 8 << 20

// OllamaBackend calls a local Ollama server's generate endpoint
type OllamaBackend struct {
	baseURL    string
	model      string
	numPredict int
	maxBody    int64
	httpClient *http.Client
	logger     *logrus.Logger
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaBackend creates an Ollama backend. BaseURL and Model are required.
func NewOllamaBackend(cfg domain.OllamaConfig, logger *logrus.Logger) (*OllamaBackend, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, domain.NewConfigurationError("llm.ollama.base_url", "Ollama base URL is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, domain.NewConfigurationError("llm.ollama.model", "Ollama model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOllamaTimeout
	}
	if cfg.NumPredict <= 0 {
		cfg.NumPredict = DefaultOllamaNumPredict
	}

	return &OllamaBackend{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		numPredict: cfg.NumPredict,
		maxBody:    maxResponseBytes,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// Name identifies the backend in logs and health output
func (o *OllamaBackend) Name() string {
	return domain.ProviderOllama
}

// Complete sends prompt to /api/generate at temperature 0 and returns the response text verbatim
func (o *OllamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: 0,
			NumPredict:  o.numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", domain.NewBackendUnavailableError(o.Name(), 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBody))
	if err != nil {
		return "", domain.NewBackendUnavailableError(o.Name(), resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewBackendUnavailableError(o.Name(), resp.StatusCode, truncate(string(body), 200), nil)
	}

	var generated ollamaGenerateResponse
	if err := json.Unmarshal(body, &generated); err != nil {
		return "", domain.NewBackendUnavailableError(o.Name(), resp.StatusCode, "undecodable response envelope", err)
	}

	o.logger.WithFields(logrus.Fields{
		"model":       o.model,
		"duration_ms": time.Since(start).Milliseconds(),
		"chars":       len(generated.Response),
	}).Debug("Ollama completion finished")

	return generated.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
