// Package catalog stores communication styles and the personas built from them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"lifestory-agent/internal/domain"
)

// Store is the gorm-backed persona and style catalog.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("catalog: dsn must not be empty")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("catalog: sql handle: %w", err)
	}
	// SQLite allows one writer; an in-memory database also lives on a single connection.
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("catalog: db must not be nil")
	}
	if err := db.AutoMigrate(&styleRow{}, &personaRow{}, &personaStyleRow{}); err != nil {
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("catalog: %s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("catalog: %s: %w", what, err)
}

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

// ListStyles returns every style ordered for display.
func (s *Store) ListStyles(ctx context.Context) ([]domain.CommStyle, error) {
	var rows []styleRow
	if err := s.db.WithContext(ctx).Order("sort_order ASC, display_name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog: list styles: %w", err)
	}
	out := make([]domain.CommStyle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// UpsertStyles inserts or updates styles by key in one transaction and
// returns how many were written.
func (s *Store) UpsertStyles(ctx context.Context, styles []domain.CommStyle) (int, error) {
	if len(styles) == 0 {
		return 0, nil
	}
	seen := make(map[string]struct{}, len(styles))
	rows := make([]styleRow, 0, len(styles))
	for _, st := range styles {
		k := strings.TrimSpace(st.Key)
		if k == "" {
			return 0, errors.New("catalog: style key must not be empty")
		}
		if _, dup := seen[k]; dup {
			return 0, fmt.Errorf("catalog: duplicate style key %q", k)
		}
		seen[k] = struct{}{}
		name := strings.TrimSpace(st.DisplayName)
		if name == "" {
			name = k
		}
		rows = append(rows, styleRow{
			ID:          uuid.NewString(),
			Key:         k,
			DisplayName: name,
			Visible:     st.Visible,
			SortOrder:   st.SortOrder,
			Directive:   strings.TrimSpace(st.Directive),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "style_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "visible", "sort_order", "directive_text", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return 0, fmt.Errorf("catalog: upsert styles: %w", err)
	}
	return len(rows), nil
}

// PersonaStyles returns the styles linked to a persona in attachment order,
// including invisible ones.
func (s *Store) PersonaStyles(ctx context.Context, personaID string) ([]domain.CommStyle, error) {
	var rows []styleRow
	err := s.db.WithContext(ctx).
		Table("comm_styles").
		Select("comm_styles.*").
		Joins("JOIN persona_styles ON persona_styles.style_id = comm_styles.id").
		Where("persona_styles.persona_id = ?", personaID).
		Order("persona_styles.position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: persona styles: %w", err)
	}
	out := make([]domain.CommStyle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Personas
// ---------------------------------------------------------------------------

// GetPersona returns a persona by id or domain.ErrNotFound.
func (s *Store) GetPersona(ctx context.Context, id string) (domain.Persona, error) {
	var row personaRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.Persona{}, notFound(err, "get persona")
	}
	return s.withStyles(ctx, s.db, row)
}

// AccountDefault returns the account's own default persona.
func (s *Store) AccountDefault(ctx context.Context, accountID string) (domain.Persona, error) {
	var row personaRow
	err := s.db.WithContext(ctx).
		Where("is_system = ? AND owner_id = ? AND is_default = ?", false, accountID, true).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		return domain.Persona{}, notFound(err, "account default")
	}
	return s.withStyles(ctx, s.db, row)
}

// SystemDefault returns the system-wide default persona.
func (s *Store) SystemDefault(ctx context.Context) (domain.Persona, error) {
	var row personaRow
	err := s.db.WithContext(ctx).
		Where("is_system = ? AND is_default = ?", true, true).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		return domain.Persona{}, notFound(err, "system default")
	}
	return s.withStyles(ctx, s.db, row)
}

// ListPersonas returns system personas followed by the account's own.
func (s *Store) ListPersonas(ctx context.Context, accountID string) ([]domain.Persona, error) {
	var rows []personaRow
	err := s.db.WithContext(ctx).
		Where("is_system = ? OR owner_id = ?", true, accountID).
		Order("is_system DESC, name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: list personas: %w", err)
	}
	if len(rows) == 0 {
		return []domain.Persona{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var links []personaStyleRow
	if err := s.db.WithContext(ctx).Where("persona_id IN ?", ids).Order("position ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("catalog: list persona styles: %w", err)
	}
	byPersona := make(map[string][]string, len(rows))
	for _, l := range links {
		byPersona[l.PersonaID] = append(byPersona[l.PersonaID], l.StyleID)
	}

	out := make([]domain.Persona, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain(byPersona[r.ID]))
	}
	return out, nil
}

// CreatePersona inserts a persona and its style links. When IsDefault is set
// every other default in the same scope is cleared in the same transaction.
func (s *Store) CreatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Persona{}, errors.New("catalog: persona name must not be empty")
	}
	if p.IsSystem {
		p.OwnerID = ""
	}
	row := personaRow{
		ID:           uuid.NewString(),
		OwnerID:      p.OwnerID,
		Name:         strings.TrimSpace(p.Name),
		Description:  strings.TrimSpace(p.Description),
		IsDefault:    p.IsDefault,
		IsSystem:     p.IsSystem,
		LegacyPrompt: strings.TrimSpace(p.LegacyPrompt),
	}

	var created domain.Persona
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.IsDefault {
			if err := clearScopeDefault(tx, row.IsSystem, row.OwnerID); err != nil {
				return err
			}
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := replaceLinks(tx, row.ID, p.StyleIDs); err != nil {
			return err
		}
		var err error
		created, err = s.withStyles(ctx, tx, row)
		return err
	})
	if err != nil {
		return domain.Persona{}, fmt.Errorf("catalog: create persona: %w", err)
	}
	return created, nil
}

// UpdatePersona replaces the persona's editable fields and style links.
// Ownership and scope are immutable.
func (s *Store) UpdatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Persona{}, errors.New("catalog: persona name must not be empty")
	}
	var updated domain.Persona
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row personaRow
		if err := tx.First(&row, "id = ?", p.ID).Error; err != nil {
			return notFound(err, "update persona")
		}
		if p.IsDefault && !row.IsDefault {
			if err := clearScopeDefault(tx, row.IsSystem, row.OwnerID); err != nil {
				return err
			}
		}
		err := tx.Model(&row).Updates(map[string]any{
			"name":          strings.TrimSpace(p.Name),
			"description":   strings.TrimSpace(p.Description),
			"legacy_prompt": strings.TrimSpace(p.LegacyPrompt),
			"is_default":    p.IsDefault,
		}).Error
		if err != nil {
			return err
		}
		if err := replaceLinks(tx, row.ID, p.StyleIDs); err != nil {
			return err
		}
		if err := tx.First(&row, "id = ?", row.ID).Error; err != nil {
			return err
		}
		updated, err = s.withStyles(ctx, tx, row)
		return err
	})
	if err != nil {
		return domain.Persona{}, fmt.Errorf("catalog: update persona: %w", err)
	}
	return updated, nil
}

// DeletePersona removes a persona and its style links. Styles are kept.
func (s *Store) DeletePersona(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("persona_id = ?", id).Delete(&personaStyleRow{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&personaRow{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("catalog: delete persona %q: %w", id, err)
	}
	return nil
}

// SetDefault makes the persona the only default within its scope.
func (s *Store) SetDefault(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row personaRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return notFound(err, "load persona")
		}
		if err := clearScopeDefault(tx, row.IsSystem, row.OwnerID); err != nil {
			return err
		}
		return tx.Model(&personaRow{}).Where("id = ?", id).Update("is_default", true).Error
	})
	if err != nil {
		return fmt.Errorf("catalog: set default %q: %w", id, err)
	}
	return nil
}

func clearScopeDefault(tx *gorm.DB, isSystem bool, ownerID string) error {
	q := tx.Model(&personaRow{}).Where("is_default = ?", true)
	if isSystem {
		q = q.Where("is_system = ?", true)
	} else {
		q = q.Where("is_system = ? AND owner_id = ?", false, ownerID)
	}
	if err := q.Update("is_default", false).Error; err != nil {
		return fmt.Errorf("clear scope default: %w", err)
	}
	return nil
}

// replaceLinks swaps the persona's style links for styleIDs in the given
// order. Duplicates and ids that match no style are skipped.
func replaceLinks(tx *gorm.DB, personaID string, styleIDs []string) error {
	if err := tx.Where("persona_id = ?", personaID).Delete(&personaStyleRow{}).Error; err != nil {
		return fmt.Errorf("clear style links: %w", err)
	}
	if len(styleIDs) == 0 {
		return nil
	}

	var existing []string
	if err := tx.Model(&styleRow{}).Where("id IN ?", styleIDs).Pluck("id", &existing).Error; err != nil {
		return fmt.Errorf("check styles: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	links := make([]personaStyleRow, 0, len(existing))
	for _, sid := range styleIDs {
		if !known[sid] {
			continue
		}
		known[sid] = false
		links = append(links, personaStyleRow{PersonaID: personaID, StyleID: sid, Position: len(links)})
	}
	if len(links) == 0 {
		return nil
	}
	if err := tx.Create(&links).Error; err != nil {
		return fmt.Errorf("link styles: %w", err)
	}
	return nil
}

func styleIDsOf(links []personaStyleRow) []string {
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.StyleID)
	}
	return ids
}

func (s *Store) withStyles(ctx context.Context, db *gorm.DB, row personaRow) (domain.Persona, error) {
	var links []personaStyleRow
	if err := db.WithContext(ctx).Where("persona_id = ?", row.ID).Order("position ASC").Find(&links).Error; err != nil {
		return domain.Persona{}, fmt.Errorf("catalog: load style links: %w", err)
	}
	return row.toDomain(styleIDsOf(links)), nil
}
