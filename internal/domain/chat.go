package domain

import (
	"fmt"
	"strings"
)

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", fmt.Errorf("domain: unknown role %q", s)
	}
}

// ChatMessage is the provider-agnostic chat message shape used by the usecases
// and LLM integrations.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
