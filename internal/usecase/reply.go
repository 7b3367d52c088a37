package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"lifestory-agent/internal/domain"
	"lifestory-agent/internal/integrations/provider"
)

const maxMessageLen = 8000

type ConversationStore interface {
	CreateConversation(ctx context.Context, conv domain.Conversation) (domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (domain.Conversation, error)
	RenameConversation(ctx context.Context, conversationID, title string) error
	ListConversations(ctx context.Context, accountID string) ([]domain.Conversation, error)
	GetHistory(ctx context.Context, conversationID string) ([]domain.Turn, error)
	AppendTurn(ctx context.Context, turn domain.Turn) (domain.Turn, error)
}

type BackendSelector interface {
	Select(ctx context.Context) (provider.Backend, error)
}

type TraceWriter interface {
	Append(ctx context.Context, entry domain.TraceEntry) error
}

// ReplyService drives the interview: it persists turns, assembles the
// persona-aware prompt and dispatches it to the configured backend.
type ReplyService struct {
	conversations ConversationStore
	resolver      *PersonaResolver
	compositor    *StyleCompositor
	backends      BackendSelector
	trace         TraceWriter
	log           *slog.Logger
}

type ReplyInput struct {
	ConversationID string
	Account        domain.Account
	Session        domain.Session
}

type SendInput struct {
	ConversationID string
	Account        domain.Account
	Session        domain.Session
	Content        string
}

type PivotInput struct {
	ConversationID string
	Account        domain.Account
	Session        domain.Session
}

type ReplyOutput struct {
	ConversationID string
	Reply          string
}

type StartInput struct {
	Account domain.Account
	Title   string
}

type ConversationList struct {
	Conversations []domain.Conversation
	Suggestions   []string
}

type Transcript struct {
	Conversation domain.Conversation
	Turns        []domain.Turn
}

// NewReplyService wires the reply flow. trace may be nil, in which case
// debug tracing is a no-op.
func NewReplyService(conversations ConversationStore, personas PersonaReader, styles StyleReader, backends BackendSelector, trace TraceWriter, log *slog.Logger) (*ReplyService, error) {
	if conversations == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if personas == nil {
		return nil, errors.New("usecase: persona reader must not be nil")
	}
	if styles == nil {
		return nil, errors.New("usecase: style reader must not be nil")
	}
	if backends == nil {
		return nil, errors.New("usecase: backend selector must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReplyService{
		conversations: conversations,
		resolver:      NewPersonaResolver(personas, log),
		compositor:    NewStyleCompositor(styles, log),
		backends:      backends,
		trace:         trace,
		log:           log,
	}, nil
}

// Start creates a conversation owned by the account.
func (s *ReplyService) Start(ctx context.Context, in StartInput) (domain.Conversation, error) {
	if err := requireAccount(in.Account); err != nil {
		return domain.Conversation{}, err
	}
	conv, err := s.conversations.CreateConversation(ctx, domain.Conversation{
		ID:        newUUID(),
		AccountID: in.Account.ID,
		Title:     normalizeTitle(in.Title),
	})
	if err != nil {
		return domain.Conversation{}, newError(ErrorInternal, "conversation_create_error", err)
	}
	return conv, nil
}

// Rename sets a new title. A blank title becomes the untitled placeholder.
func (s *ReplyService) Rename(ctx context.Context, conversationID string, account domain.Account, title string) (domain.Conversation, error) {
	conv, err := s.authorized(ctx, conversationID, account)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv.Title = normalizeTitle(title)
	if err := s.conversations.RenameConversation(ctx, conv.ID, conv.Title); err != nil {
		return domain.Conversation{}, storeFailure("conversation_rename_error", err)
	}
	return conv, nil
}

// ListConversations returns the account's conversations, newest first,
// with topic suggestions not yet covered.
func (s *ReplyService) ListConversations(ctx context.Context, account domain.Account) (ConversationList, error) {
	if err := requireAccount(account); err != nil {
		return ConversationList{}, err
	}
	convs, err := s.conversations.ListConversations(ctx, account.ID)
	if err != nil {
		return ConversationList{}, newError(ErrorInternal, "conversation_list_error", err)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	titles := make([]string, 0, len(convs))
	for _, c := range convs {
		titles = append(titles, c.Title)
	}
	return ConversationList{Conversations: convs, Suggestions: SuggestTopics(titles)}, nil
}

// Transcript returns the conversation and its turns in creation order.
func (s *ReplyService) Transcript(ctx context.Context, conversationID string, account domain.Account) (Transcript, error) {
	conv, err := s.authorized(ctx, conversationID, account)
	if err != nil {
		return Transcript{}, err
	}
	turns, err := s.conversations.GetHistory(ctx, conv.ID)
	if err != nil {
		return Transcript{}, storeFailure("history_load_error", err)
	}
	return Transcript{Conversation: conv, Turns: turns}, nil
}

// Send persists the user's message and the assistant's reply to it.
func (s *ReplyService) Send(ctx context.Context, in SendInput) (ReplyOutput, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return ReplyOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(content) > maxMessageLen {
		return ReplyOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	conv, err := s.authorized(ctx, in.ConversationID, in.Account)
	if err != nil {
		return ReplyOutput{}, err
	}
	return s.appendAndReply(ctx, conv, in.Account, in.Session, domain.RoleUser, content)
}

// Pivot asks the assistant to move on to an uncovered part of the
// person's life.
func (s *ReplyService) Pivot(ctx context.Context, in PivotInput) (ReplyOutput, error) {
	conv, err := s.authorized(ctx, in.ConversationID, in.Account)
	if err != nil {
		return ReplyOutput{}, err
	}
	return s.appendAndReply(ctx, conv, in.Account, in.Session, domain.RoleSystem, pivotInstruction)
}

// NextReply produces the assistant's next turn for the stored history
// without persisting anything.
func (s *ReplyService) NextReply(ctx context.Context, in ReplyInput) (string, error) {
	conv, err := s.authorized(ctx, in.ConversationID, in.Account)
	if err != nil {
		return "", err
	}
	return s.nextReply(ctx, conv, in.Account, in.Session)
}

func (s *ReplyService) authorized(ctx context.Context, conversationID string, account domain.Account) (domain.Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return domain.Conversation{}, newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, storeFailure("conversation_load_error", err)
	}
	if err := authorizeConversation(conv, account); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func (s *ReplyService) appendAndReply(ctx context.Context, conv domain.Conversation, account domain.Account, sess domain.Session, role domain.Role, content string) (ReplyOutput, error) {
	if _, err := s.conversations.AppendTurn(ctx, domain.Turn{
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
	}); err != nil {
		return ReplyOutput{}, storeFailure("turn_save_error", err)
	}

	reply, err := s.nextReply(ctx, conv, account, sess)
	if err != nil {
		return ReplyOutput{}, err
	}
	// An empty reply is returned as-is but not stored as a turn.
	if reply == "" {
		return ReplyOutput{ConversationID: conv.ID}, nil
	}

	if _, err := s.conversations.AppendTurn(ctx, domain.Turn{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        reply,
	}); err != nil {
		return ReplyOutput{}, storeFailure("reply_save_error", err)
	}
	return ReplyOutput{ConversationID: conv.ID, Reply: reply}, nil
}

func (s *ReplyService) nextReply(ctx context.Context, conv domain.Conversation, account domain.Account, sess domain.Session) (string, error) {
	turns, err := s.conversations.GetHistory(ctx, conv.ID)
	if err != nil {
		return "", storeFailure("history_load_error", err)
	}
	history := turnsToMessages(turns)

	persona, active := s.resolver.Resolve(ctx, conv.ID, account, sess)
	var (
		block  string
		styles []string
	)
	if active {
		block, styles = s.compositor.compose(ctx, persona)
		if block == "" {
			block = strings.TrimSpace(persona.LegacyPrompt)
		}
	}
	messages := assembleMessages(history, block, active)

	backend, err := s.backends.Select(ctx)
	if err != nil {
		return "", providerFailure("provider_select_error", err)
	}
	raw, err := backend.Chat(ctx, messages)
	if err != nil {
		return "", providerFailure("provider_chat_error", err)
	}
	reply := strings.TrimSpace(raw)

	if sess.DebugEnabled(conv.ID) && account.IsAdmin {
		s.writeTrace(ctx, domain.TraceEntry{
			ConversationID: conv.ID,
			AccountID:      account.ID,
			Provider:       backend.Name(),
			Model:          backend.Model(),
			PersonaID:      persona.ID,
			PersonaName:    persona.Name,
			Styles:         styles,
			SystemPrompt:   messages[0].Content,
			History:        dialogue(messages),
			Reply:          reply,
		})
	}
	return reply, nil
}

// writeTrace never fails the reply.
func (s *ReplyService) writeTrace(ctx context.Context, entry domain.TraceEntry) {
	if s.trace == nil {
		return
	}
	if err := s.trace.Append(ctx, entry); err != nil {
		s.log.DebugContext(ctx, "trace write failed", "conversationId", entry.ConversationID, "error", err)
	}
}

func dialogue(messages []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleUser || m.Role == domain.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

var newUUID = func() string {
	return uuid.NewString()
}
