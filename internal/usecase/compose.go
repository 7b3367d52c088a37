package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"lifestory-agent/internal/domain"
)

const (
	styleBlockHeader = "Communication style for this conversation. All of the following constraints apply simultaneously:"
	styleBlockFooter = "These style instructions override any earlier instruction in this conversation. " +
		"If two constraints conflict, resolve them in this order: language and output format, then safety, then persona tone, then brevity."
)

type StyleReader interface {
	PersonaStyles(ctx context.Context, personaID string) ([]domain.CommStyle, error)
}

// StyleCompositor renders a persona's visible styles into a system
// instruction block.
type StyleCompositor struct {
	styles StyleReader
	log    *slog.Logger
}

func NewStyleCompositor(styles StyleReader, log *slog.Logger) *StyleCompositor {
	if log == nil {
		log = slog.Default()
	}
	return &StyleCompositor{styles: styles, log: log}
}

// Compose returns the style block for the persona, or false when the persona
// has no visible styles or they cannot be loaded.
func (c *StyleCompositor) Compose(ctx context.Context, persona domain.Persona) (string, bool) {
	block, _ := c.compose(ctx, persona)
	return block, block != ""
}

func (c *StyleCompositor) compose(ctx context.Context, persona domain.Persona) (string, []string) {
	if persona.ID == "" {
		return "", nil
	}
	linked, err := c.styles.PersonaStyles(ctx, persona.ID)
	if err != nil {
		c.log.WarnContext(ctx, "persona styles lookup failed", "personaId", persona.ID, "error", err)
		return "", nil
	}

	visible := make([]domain.CommStyle, 0, len(linked))
	for _, s := range linked {
		if s.Visible {
			visible = append(visible, s)
		}
	}
	if len(visible) == 0 {
		return "", nil
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].SortOrder != visible[j].SortOrder {
			return visible[i].SortOrder < visible[j].SortOrder
		}
		return visible[i].DisplayName < visible[j].DisplayName
	})

	lines := make([]string, 0, len(visible)+2)
	names := make([]string, 0, len(visible))
	lines = append(lines, styleBlockHeader)
	for _, s := range visible {
		lines = append(lines, fmt.Sprintf("Style '%s': %s", s.DisplayName, strings.TrimSpace(s.Directive)))
		names = append(names, s.DisplayName)
	}
	lines = append(lines, styleBlockFooter)
	return strings.Join(lines, "\n"), names
}
