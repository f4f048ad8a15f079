package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	defaultOpenAITemperature = 0.1
	defaultOpenAIMaxTokens   = 400
)

var errMissingModel = errors.New("llm: model is required")

// OpenAICompatibleConfig configures a client for any OpenAI-compatible
// chat-completion endpoint. Groq's hosted API is the primary target.
type OpenAICompatibleConfig struct {
	BaseURL string // e.g. "https://api.groq.com/openai/v1"
	APIKey  string
	Model   string
	// Provider names the backend in provenance labels, e.g. "groq".
	Provider string
	Logger   *zap.Logger
}

// OpenAICompatible generates text through an OpenAI-compatible API.
type OpenAICompatible struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewOpenAICompatible constructs a client for the configured endpoint.
func NewOpenAICompatible(cfg OpenAICompatibleConfig) (*OpenAICompatible, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errMissingModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAICompatible{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		provider: provider,
		logger:   logger.Named("llm"),
	}, nil
}

// Generate implements Generator.
func (c *OpenAICompatible) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: defaultOpenAITemperature,
		MaxTokens:   defaultOpenAIMaxTokens,
	})
	if err != nil {
		c.logger.Warn("chat completion failed",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.Error(err))
		return "", fmt.Errorf("llm: %s completion: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: %s completion returned no choices", c.provider)
	}
	return resp.Choices[0].Message.Content, nil
}

// Label implements Generator.
func (c *OpenAICompatible) Label() string {
	return fmt.Sprintf("llm_%s_%s", c.provider, c.model)
}

var _ Generator = (*OpenAICompatible)(nil)
