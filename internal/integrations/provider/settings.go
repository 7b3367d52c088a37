package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"lifestory-agent/internal/integrations/paramstore"
)

// parameter names below the configured prefix
const (
	variantParam = "/config/llm_provider"
	modelParam   = "/config/%s_model"
)

var tokenParams = map[Variant]string{
	Primary:   "/open-ai-token",
	Secondary: "/anthropic-token",
	Tertiary:  "/google-token",
}

var tokenEnv = map[Variant]string{
	Primary:   "OPENAI_API_KEY",
	Secondary: "ANTHROPIC_API_KEY",
	Tertiary:  "GOOGLE_API_KEY",
}

// ParamSettings reads provider settings from SSM Parameter Store, falling
// back to the environment for the variant name and credentials. A missing or
// unusable stored credential falls back to the environment; SSM read failures
// do not.
type ParamSettings struct {
	getter          paramstore.Getter
	prefix          string
	fallbackVariant string
	lookupEnv       func(string) (string, bool)
}

// NewParamSettings creates a source rooted at prefix. fallbackVariant is used
// when no variant parameter is stored.
func NewParamSettings(getter paramstore.Getter, prefix, fallbackVariant string) (*ParamSettings, error) {
	if getter == nil {
		return nil, errors.New("provider: paramstore getter must not be nil")
	}
	return &ParamSettings{
		getter:          getter,
		prefix:          strings.TrimRight(strings.TrimSpace(prefix), "/"),
		fallbackVariant: fallbackVariant,
		lookupEnv:       os.LookupEnv,
	}, nil
}

func (p *ParamSettings) Settings(ctx context.Context) (Settings, error) {
	name, ok, err := paramstore.Lookup(ctx, p.getter, p.prefix+variantParam)
	if err != nil {
		return Settings{}, fmt.Errorf("provider: read variant: %w", err)
	}
	if !ok {
		name = p.fallbackVariant
	}
	s := Settings{Variant: ParseVariant(name)}

	model, _, err := paramstore.Lookup(ctx, p.getter, p.prefix+fmt.Sprintf(modelParam, s.Variant))
	if err != nil {
		return s, fmt.Errorf("provider: read model: %w", err)
	}
	s.Model = model

	token, err := paramstore.Token(ctx, p.getter, p.prefix+tokenParams[s.Variant])
	if err == nil {
		s.APIKey = token
		return s, nil
	}
	if !errors.Is(err, paramstore.ErrNotFound) && !errors.Is(err, paramstore.ErrInvalidToken) {
		return s, fmt.Errorf("provider: read credential: %w", err)
	}
	if v, ok := p.lookupEnv(tokenEnv[s.Variant]); ok && strings.TrimSpace(v) != "" {
		s.APIKey = strings.TrimSpace(v)
		return s, nil
	}
	if errors.Is(err, paramstore.ErrInvalidToken) {
		return s, fmt.Errorf("provider: no credential for %s: %w", s.Variant, err)
	}
	return s, fmt.Errorf("provider: no credential for %s", s.Variant)
}
