package handler

import (
	"time"

	"lifestory-agent/internal/domain"
	"lifestory-agent/internal/usecase"
)

type errorResponse struct {
	Error string `json:"error"`
}

type startRequest struct {
	Title string `json:"title"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type summarizeRequest struct {
	Format string `json:"format"`
}

type selectPersonaRequest struct {
	PersonaID string `json:"personaId"`
}

type debugRequest struct {
	Enabled bool `json:"enabled"`
}

type personaRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	IsDefault    bool     `json:"isDefault"`
	IsSystem     bool     `json:"isSystem"`
	LegacyPrompt string   `json:"legacyPrompt"`
	StyleIDs     []string `json:"styleIds"`
}

func (r personaRequest) input() usecase.PersonaInput {
	return usecase.PersonaInput{
		Name:         r.Name,
		Description:  r.Description,
		IsDefault:    r.IsDefault,
		IsSystem:     r.IsSystem,
		LegacyPrompt: r.LegacyPrompt,
		StyleIDs:     r.StyleIDs,
	}
}

type styleRequest struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Visible     *bool  `json:"visible"`
	SortOrder   int    `json:"sortOrder"`
	Directive   string `json:"directive"`
}

type styleSyncRequest struct {
	Styles []styleRequest `json:"styles"`
}

// styles converts the request; visible defaults to true when omitted.
func (r styleSyncRequest) styles() []domain.CommStyle {
	out := make([]domain.CommStyle, 0, len(r.Styles))
	for _, s := range r.Styles {
		visible := true
		if s.Visible != nil {
			visible = *s.Visible
		}
		out = append(out, domain.CommStyle{
			Key:         s.Key,
			DisplayName: s.DisplayName,
			Visible:     visible,
			SortOrder:   s.SortOrder,
			Directive:   s.Directive,
		})
	}
	return out
}

type styleSyncResponse struct {
	Synced int `json:"synced"`
}

type conversationResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Turns        int       `json:"turns"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

type conversationListResponse struct {
	Conversations []conversationResponse `json:"conversations"`
	Suggestions   []string               `json:"suggestions"`
}

type turnResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type transcriptResponse struct {
	Conversation conversationResponse `json:"conversation"`
	Turns        []turnResponse       `json:"turns"`
}

type replyResponse struct {
	ConversationID string `json:"conversationId"`
	Reply          string `json:"reply"`
}

type summaryResponse struct {
	ConversationID string    `json:"conversationId"`
	Kind           string    `json:"kind"`
	Format         string    `json:"format"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type personaResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	IsDefault    bool     `json:"isDefault"`
	IsSystem     bool     `json:"isSystem"`
	LegacyPrompt string   `json:"legacyPrompt,omitempty"`
	StyleIDs     []string `json:"styleIds"`
}

type personaListResponse struct {
	Personas []personaResponse `json:"personas"`
}

type styleResponse struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Visible     bool   `json:"visible"`
	SortOrder   int    `json:"sortOrder"`
	Directive   string `json:"directive"`
}

type styleListResponse struct {
	Styles []styleResponse `json:"styles"`
}

func toConversation(c domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:           c.ID,
		Title:        c.Title,
		Turns:        c.Turns,
		CreatedAt:    c.CreatedAt,
		LastActivity: c.LastActivity,
	}
}

func toConversationList(l usecase.ConversationList) conversationListResponse {
	out := conversationListResponse{
		Conversations: make([]conversationResponse, 0, len(l.Conversations)),
		Suggestions:   l.Suggestions,
	}
	for _, c := range l.Conversations {
		out.Conversations = append(out.Conversations, toConversation(c))
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return out
}

func toTranscript(t usecase.Transcript) transcriptResponse {
	out := transcriptResponse{
		Conversation: toConversation(t.Conversation),
		Turns:        make([]turnResponse, 0, len(t.Turns)),
	}
	for _, turn := range t.Turns {
		out.Turns = append(out.Turns, turnResponse{
			ID:        turn.ID,
			Role:      string(turn.Role),
			Content:   turn.Content,
			CreatedAt: turn.CreatedAt,
		})
	}
	return out
}

func toSummary(s domain.Summary) summaryResponse {
	return summaryResponse{
		ConversationID: s.ConversationID,
		Kind:           s.Kind,
		Format:         string(s.Format),
		Content:        s.Content,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toPersona(p domain.Persona) personaResponse {
	styleIDs := p.StyleIDs
	if styleIDs == nil {
		styleIDs = []string{}
	}
	return personaResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		IsDefault:    p.IsDefault,
		IsSystem:     p.IsSystem,
		LegacyPrompt: p.LegacyPrompt,
		StyleIDs:     styleIDs,
	}
}

func toPersonas(list []domain.Persona) []personaResponse {
	out := make([]personaResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPersona(p))
	}
	return out
}

func toStyles(list []domain.CommStyle) []styleResponse {
	out := make([]styleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, styleResponse{
			ID:          s.ID,
			Key:         s.Key,
			DisplayName: s.DisplayName,
			Visible:     s.Visible,
			SortOrder:   s.SortOrder,
			Directive:   s.Directive,
		})
	}
	return out
}
