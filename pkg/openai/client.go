package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/tinkerly/tinkerly-backend/pkg/config"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
)

const (
	defaultModel     = goopenai.GPT4oMini
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 2000
)

var ErrNotConfigured = errors.New("openai api key is not configured")

// Client bundles the chat-completions client with its call settings.
type Client struct {
	api       *goopenai.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// NewClient builds a go-openai client. TINKERLY_OPENAI_BASE_URL points it at
// any OpenAI-compatible endpoint.
func NewClient(ctx context.Context, cfg config.OpenAIConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}

	c := &Client{
		api:       goopenai.NewClientWithConfig(clientCfg),
		model:     strings.TrimSpace(cfg.Model),
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("openai client initialized (model=%s)", c.model))
	}
	return c, nil
}

func (c *Client) API() *goopenai.Client {
	if c == nil {
		return nil
	}
	return c.api
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func (c *Client) Timeout() time.Duration {
	if c == nil {
		return defaultTimeout
	}
	return c.timeout
}

func (c *Client) MaxTokens() int {
	if c == nil {
		return defaultMaxTokens
	}
	return c.maxTokens
}
