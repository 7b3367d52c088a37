package domain

// TraceEntry is one diagnostic record of an assembled reply.
type TraceEntry struct {
	ConversationID string        `json:"conversationId"`
	AccountID      string        `json:"accountId"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	PersonaID      string        `json:"personaId,omitempty"`
	PersonaName    string        `json:"personaName,omitempty"`
	Styles         []string      `json:"styles,omitempty"`
	SystemPrompt   string        `json:"systemPrompt"`
	History        []ChatMessage `json:"history"`
	Reply          string        `json:"reply"`
}
