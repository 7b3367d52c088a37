package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"lifestory-agent/internal/domain"
)

const (
	// Name identifies this backend in provider settings and traces.
	Name = "tertiary"

	DefaultModel       = "gemini-1.5-flash"
	defaultTemperature = float32(0.4)
)

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends conversations to the Gemini API as a single flattened prompt.
type Client struct {
	model  string
	models contentGenerator
}

type Option func(*Client)

func withModels(m contentGenerator) Option {
	return func(c *Client) {
		c.models = m
	}
}

// NewClient builds the backend. An empty model falls back to DefaultModel.
func NewClient(ctx context.Context, apiKey, model string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	c := &Client{model: model}
	for _, opt := range opts {
		opt(c)
	}
	if c.models != nil {
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	c.models = client.Models
	return c, nil
}

func (c *Client) Name() string  { return Name }
func (c *Client) Model() string { return c.model }

// Chat flattens the conversation and returns the trimmed reply. Every failure
// is returned as a *domain.ProviderError.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(flatten(messages)), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(defaultTemperature),
	})
	if err != nil {
		return "", domain.NewProviderError(Name, fmt.Errorf("gemini: generate content: %w", err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", domain.NewProviderError(Name, errors.New("gemini: no candidates in response"))
	}
	return strings.TrimSpace(resp.Text()), nil
}

// flatten renders the conversation as "role: content" lines.
func flatten(messages []domain.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
