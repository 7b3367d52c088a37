// Package provider selects the LLM backend used for a chat call.
package provider

import (
	"context"
	"fmt"
	"strings"

	"lifestory-agent/internal/domain"
	"lifestory-agent/internal/integrations/anthropic"
	"lifestory-agent/internal/integrations/gemini"
	"lifestory-agent/internal/integrations/openai"
)

// Variant names one of the interchangeable backends.
type Variant string

const (
	Primary   Variant = openai.Name
	Secondary Variant = anthropic.Name
	Tertiary  Variant = gemini.Name
)

// ParseVariant maps a configured name onto a Variant. Vendor aliases are
// accepted and anything unrecognized selects Primary.
func ParseVariant(s string) Variant {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Secondary), "anthropic", "claude":
		return Secondary
	case string(Tertiary), "google", "gemini":
		return Tertiary
	default:
		return Primary
	}
}

// Backend is the uniform chat contract every variant satisfies.
type Backend interface {
	Name() string
	Model() string
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Settings is everything needed to build one backend.
type Settings struct {
	Variant Variant
	APIKey  string
	Model   string
	BaseURL string
}

// New builds the backend described by s. It has no side effects beyond
// constructing the client.
func New(ctx context.Context, s Settings) (Backend, error) {
	variant := ParseVariant(string(s.Variant))
	var (
		b   Backend
		err error
	)
	switch variant {
	case Secondary:
		var opts []anthropic.Option
		if s.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(s.BaseURL))
		}
		b, err = anthropic.NewClient(ctx, s.APIKey, s.Model, opts...)
	case Tertiary:
		b, err = gemini.NewClient(ctx, s.APIKey, s.Model)
	default:
		var opts []openai.Option
		if s.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(s.BaseURL))
		}
		b, err = openai.NewClient(s.APIKey, s.Model, opts...)
	}
	if err != nil {
		return nil, domain.NewProviderError(string(variant), fmt.Errorf("provider: build: %w", err))
	}
	return b, nil
}

// SettingsSource supplies the current provider settings.
type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

// Router re-reads settings and builds a fresh backend on every Select, so a
// configuration change takes effect on the next call.
type Router struct {
	source SettingsSource
	build  func(context.Context, Settings) (Backend, error)
}

func NewRouter(source SettingsSource) (*Router, error) {
	if source == nil {
		return nil, fmt.Errorf("provider: settings source must not be nil")
	}
	return &Router{source: source, build: New}, nil
}

// Select returns the backend for the current settings.
func (r *Router) Select(ctx context.Context) (Backend, error) {
	s, err := r.source.Settings(ctx)
	if err != nil {
		return nil, domain.NewProviderError(string(ParseVariant(string(s.Variant))), fmt.Errorf("provider: load settings: %w", err))
	}
	return r.build(ctx, s)
}
