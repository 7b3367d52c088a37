package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"lifestory-agent/internal/domain"
)

type seedFile struct {
	Styles   []seedStyle   `yaml:"styles"`
	Personas []seedPersona `yaml:"personas"`
}

type seedStyle struct {
	Key         string `yaml:"key"`
	DisplayName string `yaml:"display_name"`
	Visible     *bool  `yaml:"visible,omitempty"`
	SortOrder   int    `yaml:"sort_order"`
	Directive   string `yaml:"directive"`
}

// seedPersona describes a system persona. Styles are referenced by key.
type seedPersona struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	Default      bool     `yaml:"default,omitempty"`
	LegacyPrompt string   `yaml:"legacy_prompt,omitempty"`
	Styles       []string `yaml:"styles"`
}

type seedStore interface {
	UpsertStyles(ctx context.Context, styles []domain.CommStyle) (int, error)
	ListStyles(ctx context.Context) ([]domain.CommStyle, error)
	ListPersonas(ctx context.Context, accountID string) ([]domain.Persona, error)
	CreatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error)
	UpdatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error)
}

type seedResult struct {
	Styles          int
	PersonasCreated int
	PersonasUpdated int
}

// parseSeed decodes a seed document. Unknown fields are rejected so typos
// surface instead of being dropped.
func parseSeed(data []byte) (seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return seedFile{}, fmt.Errorf("stylesync: parse seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return seedFile{}, err
	}
	return seed, nil
}

func (s seedFile) validate() error {
	var errs []error
	keys := make(map[string]struct{}, len(s.Styles))
	for i, st := range s.Styles {
		key := strings.TrimSpace(st.Key)
		if key == "" {
			errs = append(errs, fmt.Errorf("styles[%d]: key is required", i))
			continue
		}
		if _, dup := keys[key]; dup {
			errs = append(errs, fmt.Errorf("styles[%d]: duplicate key %q", i, key))
		}
		keys[key] = struct{}{}
		if strings.TrimSpace(st.Directive) == "" {
			errs = append(errs, fmt.Errorf("styles[%d] %q: directive is required", i, key))
		}
	}
	defaults := 0
	for i, p := range s.Personas {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("personas[%d]: name is required", i))
		}
		if p.Default {
			defaults++
		}
	}
	if defaults > 1 {
		errs = append(errs, errors.New("personas: at most one system default"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("stylesync: invalid seed: %w", errors.Join(errs...))
	}
	return nil
}

func (s seedStyle) toDomain() domain.CommStyle {
	visible := true
	if s.Visible != nil {
		visible = *s.Visible
	}
	displayName := strings.TrimSpace(s.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(s.Key)
	}
	return domain.CommStyle{
		Key:         strings.TrimSpace(s.Key),
		DisplayName: displayName,
		Visible:     visible,
		SortOrder:   s.SortOrder,
		Directive:   strings.TrimSpace(s.Directive),
	}
}

// applySeed upserts styles by key, then creates or updates system personas
// matched by name.
func applySeed(ctx context.Context, store seedStore, seed seedFile) (seedResult, error) {
	var res seedResult
	styles := make([]domain.CommStyle, 0, len(seed.Styles))
	for _, s := range seed.Styles {
		styles = append(styles, s.toDomain())
	}
	n, err := store.UpsertStyles(ctx, styles)
	if err != nil {
		return res, fmt.Errorf("stylesync: upsert styles: %w", err)
	}
	res.Styles = n
	if len(seed.Personas) == 0 {
		return res, nil
	}

	all, err := store.ListStyles(ctx)
	if err != nil {
		return res, fmt.Errorf("stylesync: list styles: %w", err)
	}
	idByKey := make(map[string]string, len(all))
	for _, s := range all {
		idByKey[s.Key] = s.ID
	}

	existing, err := store.ListPersonas(ctx, "")
	if err != nil {
		return res, fmt.Errorf("stylesync: list personas: %w", err)
	}
	byName := make(map[string]domain.Persona, len(existing))
	for _, p := range existing {
		if p.IsSystem {
			byName[p.Name] = p
		}
	}

	for _, sp := range seed.Personas {
		p := domain.Persona{
			Name:         strings.TrimSpace(sp.Name),
			Description:  sp.Description,
			IsDefault:    sp.Default,
			IsSystem:     true,
			LegacyPrompt: sp.LegacyPrompt,
		}
		for _, key := range sp.Styles {
			id, ok := idByKey[strings.TrimSpace(key)]
			if !ok {
				return res, fmt.Errorf("stylesync: persona %q: unknown style %q", p.Name, key)
			}
			p.StyleIDs = append(p.StyleIDs, id)
		}

		if prev, ok := byName[p.Name]; ok {
			p.ID = prev.ID
			if _, err := store.UpdatePersona(ctx, p); err != nil {
				return res, fmt.Errorf("stylesync: update persona %q: %w", p.Name, err)
			}
			res.PersonasUpdated++
			continue
		}
		if _, err := store.CreatePersona(ctx, p); err != nil {
			return res, fmt.Errorf("stylesync: create persona %q: %w", p.Name, err)
		}
		res.PersonasCreated++
	}
	return res, nil
}
