package domain

import (
	"fmt"
	"strings"
	"time"
)

// SummaryKindSession is the only summary kind produced today; one per conversation.
const SummaryKindSession = "session"

// Conversation is a single interview owned by exactly one account.
type Conversation struct {
	ID           string
	AccountID    string
	Title        string
	Turns        int
	CreatedAt    time.Time
	LastActivity time.Time
}

// Turn is a single persisted conversation message. Turns are ordered by CreatedAt.
type Turn struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// Format is the output encoding of a summary.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat converts a request or stored value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatMarkdown, FormatText:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "txt", "plain":
		return FormatText, nil
	default:
		return "", fmt.Errorf("domain: unknown summary format %q", s)
	}
}

// Summary is the distilled narrative of a conversation, unique per (ConversationID, Kind).
type Summary struct {
	ConversationID string
	AccountID      string
	Kind           string
	Format         Format
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
