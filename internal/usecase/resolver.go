package usecase

import (
	"context"
	"log/slog"

	"lifestory-agent/internal/domain"
)

type PersonaReader interface {
	GetPersona(ctx context.Context, id string) (domain.Persona, error)
	AccountDefault(ctx context.Context, accountID string) (domain.Persona, error)
	SystemDefault(ctx context.Context) (domain.Persona, error)
}

// PersonaResolver picks the persona that speaks the next assistant turn.
type PersonaResolver struct {
	personas PersonaReader
	log      *slog.Logger
}

func NewPersonaResolver(personas PersonaReader, log *slog.Logger) *PersonaResolver {
	if log == nil {
		log = slog.Default()
	}
	return &PersonaResolver{personas: personas, log: log}
}

// Resolve returns the first match of: the session selection (when visible to
// the account), the account default, the system default. Lookup failures
// count as no match.
func (r *PersonaResolver) Resolve(ctx context.Context, conversationID string, account domain.Account, sess domain.Session) (domain.Persona, bool) {
	if id, ok := sess.SelectedPersona(conversationID); ok {
		p, err := r.personas.GetPersona(ctx, id)
		switch {
		case err != nil:
			r.log.WarnContext(ctx, "persona selection lookup failed",
				"conversationId", conversationID, "personaId", id, "error", err)
		case !p.VisibleTo(account.ID):
			r.log.WarnContext(ctx, "persona selection ignored",
				"conversationId", conversationID, "personaId", id, "accountId", account.ID)
		default:
			return p, true
		}
	}

	if account.ID != "" {
		p, err := r.personas.AccountDefault(ctx, account.ID)
		if err == nil {
			return p, true
		}
		r.logMiss(ctx, "account default lookup failed", err, "accountId", account.ID)
	}

	p, err := r.personas.SystemDefault(ctx)
	if err == nil {
		return p, true
	}
	r.logMiss(ctx, "system default lookup failed", err)
	return domain.Persona{}, false
}

// logMiss stays quiet for the common "nothing configured" case.
func (r *PersonaResolver) logMiss(ctx context.Context, msg string, err error, attrs ...any) {
	if isNotFound(err) {
		return
	}
	r.log.WarnContext(ctx, msg, append(attrs, "error", err)...)
}
