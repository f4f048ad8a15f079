package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	defaultOllamaModel       = "llama3"
	defaultOllamaTemperature = 0.2
	defaultOllamaTimeout     = 30 * time.Second
)

var errInvalidOllamaHost = errors.New("llm: ollama host must be an http or https URL")

// OllamaConfig configures the local self-hosted generation backend.
type OllamaConfig struct {
	Host   string // e.g. "http://localhost:11434"
	Model  string
	Client *http.Client
	Logger *zap.Logger
}

// Ollama generates text through a local Ollama /api/generate endpoint.
type Ollama struct {
	host   *url.URL
	model  string
	client *http.Client
	logger *zap.Logger
}

// NewOllama validates the host URL and constructs the client.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	host, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidOllamaHost, err)
	}
	if host.Scheme != "http" && host.Scheme != "https" {
		return nil, errInvalidOllamaHost
	}

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultOllamaTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ollama{
		host:   host,
		model:  model,
		client: client,
		logger: logger.Named("llm"),
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Generate implements Generator.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: defaultOllamaTemperature},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal ollama request: %w", err)
	}

	endpoint := o.host.JoinPath("/api/generate")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Warn("ollama request failed", zap.String("model", o.model), zap.Error(err))
		return "", fmt.Errorf("llm: call ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: ollama status %d: %s", resp.StatusCode, string(body))
	}

	var generated ollamaGenerateResponse
	if err := json.Unmarshal(body, &generated); err != nil {
		return "", fmt.Errorf("llm: parse ollama response: %w", err)
	}
	return generated.Response, nil
}

// Label implements Generator.
func (o *Ollama) Label() string {
	return fmt.Sprintf("llm_ollama_%s", o.model)
}

var _ Generator = (*Ollama)(nil)
