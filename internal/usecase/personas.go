package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"lifestory-agent/internal/domain"
)

type PersonaCatalog interface {
	PersonaReader
	ListPersonas(ctx context.Context, accountID string) ([]domain.Persona, error)
	CreatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error)
	UpdatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error)
	DeletePersona(ctx context.Context, id string) error
	SetDefault(ctx context.Context, id string) error
	ListStyles(ctx context.Context) ([]domain.CommStyle, error)
	UpsertStyles(ctx context.Context, styles []domain.CommStyle) (int, error)
}

// SessionWriter records interactive per-conversation choices.
type SessionWriter interface {
	SelectPersona(ctx context.Context, sessionID, conversationID, personaID string) error
	SetDebug(ctx context.Context, sessionID, conversationID string, on bool) error
}

// PersonaService administers personas and styles and records session
// persona choices.
type PersonaService struct {
	catalog  PersonaCatalog
	sessions SessionWriter
	log      *slog.Logger
}

type PersonaInput struct {
	Name         string
	Description  string
	IsDefault    bool
	IsSystem     bool
	LegacyPrompt string
	StyleIDs     []string
}

func NewPersonaService(catalog PersonaCatalog, sessions SessionWriter, log *slog.Logger) (*PersonaService, error) {
	if catalog == nil {
		return nil, errors.New("usecase: persona catalog must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session writer must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PersonaService{catalog: catalog, sessions: sessions, log: log}, nil
}

// List returns the system personas followed by the account's own.
func (s *PersonaService) List(ctx context.Context, account domain.Account) ([]domain.Persona, error) {
	if err := requireAccount(account); err != nil {
		return nil, err
	}
	list, err := s.catalog.ListPersonas(ctx, account.ID)
	if err != nil {
		return nil, newError(ErrorInternal, "persona_list_error", err)
	}
	return list, nil
}

func (s *PersonaService) ListStyles(ctx context.Context) ([]domain.CommStyle, error) {
	styles, err := s.catalog.ListStyles(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "style_list_error", err)
	}
	return styles, nil
}

func (s *PersonaService) Create(ctx context.Context, account domain.Account, in PersonaInput) (domain.Persona, error) {
	if err := requireAccount(account); err != nil {
		return domain.Persona{}, err
	}
	p := in.persona()
	if p.Name == "" {
		return domain.Persona{}, newError(ErrorInvalidInput, "persona_name_required", nil)
	}
	if !p.IsSystem {
		p.OwnerID = account.ID
	}
	if err := authorizePersonaWrite(p, account); err != nil {
		return domain.Persona{}, err
	}
	created, err := s.catalog.CreatePersona(ctx, p)
	if err != nil {
		return domain.Persona{}, newError(ErrorInternal, "persona_create_error", err)
	}
	s.log.InfoContext(ctx, "persona created", "personaId", created.ID, "system", created.IsSystem)
	return created, nil
}

// Update replaces the editable fields and style links. Scope cannot change.
func (s *PersonaService) Update(ctx context.Context, account domain.Account, id string, in PersonaInput) (domain.Persona, error) {
	existing, err := s.writable(ctx, account, id)
	if err != nil {
		return domain.Persona{}, err
	}
	p := in.persona()
	if p.Name == "" {
		return domain.Persona{}, newError(ErrorInvalidInput, "persona_name_required", nil)
	}
	p.ID = existing.ID
	p.OwnerID = existing.OwnerID
	p.IsSystem = existing.IsSystem
	updated, err := s.catalog.UpdatePersona(ctx, p)
	if err != nil {
		return domain.Persona{}, storeFailure("persona_update_error", err)
	}
	return updated, nil
}

func (s *PersonaService) Delete(ctx context.Context, account domain.Account, id string) error {
	if _, err := s.writable(ctx, account, id); err != nil {
		return err
	}
	if err := s.catalog.DeletePersona(ctx, id); err != nil {
		return storeFailure("persona_delete_error", err)
	}
	return nil
}

// SetDefault makes the persona the only default in its scope.
func (s *PersonaService) SetDefault(ctx context.Context, account domain.Account, id string) error {
	if _, err := s.writable(ctx, account, id); err != nil {
		return err
	}
	if err := s.catalog.SetDefault(ctx, id); err != nil {
		return storeFailure("persona_default_error", err)
	}
	return nil
}

// Select records the persona for one conversation in the caller's session.
// An empty personaID clears the choice.
func (s *PersonaService) Select(ctx context.Context, account domain.Account, sessionID, conversationID, personaID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return newError(ErrorInvalidInput, "missing_session", nil)
	}
	if strings.TrimSpace(conversationID) == "" {
		return newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	if personaID != "" {
		p, err := s.catalog.GetPersona(ctx, personaID)
		if err != nil {
			return storeFailure("persona_load_error", err)
		}
		if !p.VisibleTo(account.ID) {
			return newError(ErrorForbidden, "persona_not_visible", nil)
		}
	}
	if err := s.sessions.SelectPersona(ctx, sessionID, conversationID, personaID); err != nil {
		return newError(ErrorInternal, "session_write_error", err)
	}
	return nil
}

// SetDebug toggles reply tracing for a conversation. Admin only.
func (s *PersonaService) SetDebug(ctx context.Context, account domain.Account, sessionID, conversationID string, on bool) error {
	if !account.IsAdmin {
		return newError(ErrorForbidden, "debug_admin_only", nil)
	}
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(conversationID) == "" {
		return newError(ErrorInvalidInput, "missing_session", nil)
	}
	if err := s.sessions.SetDebug(ctx, sessionID, conversationID, on); err != nil {
		return newError(ErrorInternal, "session_write_error", err)
	}
	return nil
}

// SyncStyles bulk-upserts styles by key. Admin only.
func (s *PersonaService) SyncStyles(ctx context.Context, account domain.Account, styles []domain.CommStyle) (int, error) {
	if !account.IsAdmin {
		return 0, newError(ErrorForbidden, "style_sync_admin_only", nil)
	}
	n, err := s.catalog.UpsertStyles(ctx, styles)
	if err != nil {
		return 0, newError(ErrorInvalidInput, "style_sync_error", err)
	}
	s.log.InfoContext(ctx, "styles synced", "count", n)
	return n, nil
}

func (s *PersonaService) writable(ctx context.Context, account domain.Account, id string) (domain.Persona, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Persona{}, newError(ErrorInvalidInput, "missing_persona_id", nil)
	}
	p, err := s.catalog.GetPersona(ctx, id)
	if err != nil {
		return domain.Persona{}, storeFailure("persona_load_error", err)
	}
	if err := authorizePersonaWrite(p, account); err != nil {
		return domain.Persona{}, err
	}
	return p, nil
}

func (in PersonaInput) persona() domain.Persona {
	return domain.Persona{
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		IsDefault:    in.IsDefault,
		IsSystem:     in.IsSystem,
		LegacyPrompt: strings.TrimSpace(in.LegacyPrompt),
		StyleIDs:     in.StyleIDs,
	}
}
