package domain

// Account is the authenticated caller, supplied by the request layer.
type Account struct {
	ID      string
	Name    string
	IsAdmin bool
}

// Session carries interactive, non-persisted per-conversation choices.
// The zero value is an empty session.
type Session struct {
	Personas map[string]string
	Debug    map[string]bool
}

// SelectedPersona returns the persona chosen for a conversation in this session.
func (s Session) SelectedPersona(conversationID string) (string, bool) {
	id, ok := s.Personas[conversationID]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// DebugEnabled reports whether reply tracing was requested for a conversation.
func (s Session) DebugEnabled(conversationID string) bool {
	return s.Debug[conversationID]
}
