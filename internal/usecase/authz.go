package usecase

import (
	"lifestory-agent/internal/domain"
)

func authorizeConversation(conv domain.Conversation, account domain.Account) error {
	if account.IsAdmin || (account.ID != "" && conv.AccountID == account.ID) {
		return nil
	}
	return newError(ErrorForbidden, "conversation_not_owned", nil)
}

// authorizePersonaWrite: system personas are admin-only, account personas
// belong to their owner alone.
func authorizePersonaWrite(p domain.Persona, account domain.Account) error {
	if p.IsSystem {
		if account.IsAdmin {
			return nil
		}
		return newError(ErrorForbidden, "system_persona_admin_only", nil)
	}
	if account.ID != "" && p.OwnerID == account.ID {
		return nil
	}
	return newError(ErrorForbidden, "persona_not_owned", nil)
}

func requireAccount(account domain.Account) error {
	if account.ID == "" {
		return newError(ErrorInvalidInput, "missing_account", nil)
	}
	return nil
}
