package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"lifestory-agent/internal/domain"
)

const (
	// Name identifies this backend in provider settings and traces.
	Name = "secondary"

	DefaultModel       = "claude-3-haiku-20240307"
	defaultMaxTokens   = 400
	defaultTemperature = float32(0.4)

	fallbackSystem  = "You are a kind, patient biographer interviewing an elderly person."
	fallbackOpening = "Hello"
	systemPrefix    = "[system] "
)

// generator is the slice of the eino chat model used here.
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client sends conversations to Anthropic's Messages API through eino.
type Client struct {
	model   string
	baseURL string
	gen     generator
}

type Option func(*Client)

// WithBaseURL points the client at a non-default Anthropic endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func withGenerator(g generator) Option {
	return func(c *Client) {
		c.gen = g
	}
}

// NewClient builds the backend. An empty model falls back to DefaultModel.
func NewClient(ctx context.Context, apiKey, modelID string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key must not be empty")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		modelID = DefaultModel
	}
	c := &Client{model: modelID}
	for _, opt := range opts {
		opt(c)
	}
	if c.gen != nil {
		return c, nil
	}

	temperature := defaultTemperature
	cfg := &claude.Config{
		APIKey:      apiKey,
		Model:       modelID,
		MaxTokens:   defaultMaxTokens,
		Temperature: &temperature,
	}
	if c.baseURL != "" {
		baseURL := c.baseURL
		cfg.BaseURL = &baseURL
	}
	cm, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("anthropic: init chat model: %w", err)
	}
	c.gen = cm
	return c, nil
}

func (c *Client) Name() string  { return Name }
func (c *Client) Model() string { return c.model }

// Chat sends the conversation and returns the trimmed reply. Every failure is
// returned as a *domain.ProviderError.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	resp, err := c.gen.Generate(ctx, toSchema(messages))
	if err != nil {
		return "", domain.NewProviderError(Name, fmt.Errorf("anthropic: generate: %w", err))
	}
	if resp == nil {
		return "", domain.NewProviderError(Name, errors.New("anthropic: empty response"))
	}
	return strings.TrimSpace(resp.Content), nil
}

// toSchema maps the conversation onto Anthropic's shape: one system field
// followed by user/assistant turns. Only the first system message fills the
// system field; later ones are re-sent as prefixed user turns.
func toSchema(messages []domain.ChatMessage) []*schema.Message {
	system := ""
	haveSystem := false
	turns := make([]*schema.Message, 0, len(messages)+1)
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			if !haveSystem {
				system = strings.TrimSpace(m.Content)
				haveSystem = true
				continue
			}
			turns = append(turns, schema.UserMessage(systemPrefix+m.Content))
		case domain.RoleAssistant:
			turns = append(turns, schema.AssistantMessage(m.Content, nil))
		default:
			turns = append(turns, schema.UserMessage(m.Content))
		}
	}
	if system == "" {
		system = fallbackSystem
	}
	if len(turns) == 0 {
		turns = append(turns, schema.UserMessage(fallbackOpening))
	}
	return append([]*schema.Message{schema.SystemMessage(system)}, turns...)
}
