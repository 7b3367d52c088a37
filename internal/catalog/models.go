package catalog

import (
	"time"

	"lifestory-agent/internal/domain"
)

type styleRow struct {
	ID          string `gorm:"primaryKey"`
	Key         string `gorm:"column:style_key;uniqueIndex;not null"`
	DisplayName string `gorm:"not null"`
	Visible     bool   `gorm:"not null"`
	SortOrder   int    `gorm:"not null;default:0"`
	Directive   string `gorm:"column:directive_text;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (styleRow) TableName() string { return "comm_styles" }

type personaRow struct {
	ID           string `gorm:"primaryKey"`
	OwnerID      string `gorm:"index"`
	Name         string `gorm:"not null"`
	Description  string
	IsDefault    bool   `gorm:"not null;default:false;index"`
	IsSystem     bool   `gorm:"not null;default:false;index"`
	LegacyPrompt string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (personaRow) TableName() string { return "personas" }

type personaStyleRow struct {
	PersonaID string `gorm:"primaryKey"`
	StyleID   string `gorm:"primaryKey;index"`
	Position  int    `gorm:"not null;default:0"`
}

func (personaStyleRow) TableName() string { return "persona_styles" }

func (r styleRow) toDomain() domain.CommStyle {
	return domain.CommStyle{
		ID:          r.ID,
		Key:         r.Key,
		DisplayName: r.DisplayName,
		Visible:     r.Visible,
		SortOrder:   r.SortOrder,
		Directive:   r.Directive,
	}
}

func (r personaRow) toDomain(styleIDs []string) domain.Persona {
	return domain.Persona{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Description:  r.Description,
		IsDefault:    r.IsDefault,
		IsSystem:     r.IsSystem,
		LegacyPrompt: r.LegacyPrompt,
		StyleIDs:     styleIDs,
	}
}
