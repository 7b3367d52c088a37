package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lifestory-agent/internal/domain"
)

// Summarizer turns a transcript into a formatted personal history.
type Summarizer struct {
	backends BackendSelector
}

func NewSummarizer(backends BackendSelector) (*Summarizer, error) {
	if backends == nil {
		return nil, errors.New("usecase: backend selector must not be nil")
	}
	return &Summarizer{backends: backends}, nil
}

// Summarize fails with EMPTY_TRANSCRIPT before contacting any backend when
// there are no turns.
func (s *Summarizer) Summarize(ctx context.Context, turns []domain.ChatMessage, format domain.Format, speakerName string) (string, error) {
	if len(turns) == 0 {
		return "", newError(ErrorEmptyTranscript, "empty_transcript", nil)
	}
	backend, err := s.backends.Select(ctx)
	if err != nil {
		return "", providerFailure("provider_select_error", err)
	}
	raw, err := backend.Chat(ctx, buildSummaryMessages(turns, format, speakerName))
	if err != nil {
		return "", providerFailure("summary_chat_error", err)
	}
	return StripCodeFences(raw), nil
}

type SummaryStore interface {
	GetSummary(ctx context.Context, conversationID, kind string) (domain.Summary, error)
	UpsertSummary(ctx context.Context, s domain.Summary) (domain.Summary, error)
}

type SummaryService struct {
	conversations ConversationStore
	summaries     SummaryStore
	summarizer    *Summarizer
	log           *slog.Logger
}

type SummarizeInput struct {
	ConversationID string
	Account        domain.Account
	Format         domain.Format
}

type MarkdownExport struct {
	Filename string
	Content  string
}

func NewSummaryService(conversations ConversationStore, summaries SummaryStore, backends BackendSelector, log *slog.Logger) (*SummaryService, error) {
	if conversations == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if summaries == nil {
		return nil, errors.New("usecase: summary store must not be nil")
	}
	summarizer, err := NewSummarizer(backends)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &SummaryService{
		conversations: conversations,
		summaries:     summaries,
		summarizer:    summarizer,
		log:           log,
	}, nil
}

// SummarizeConversation regenerates the session summary and replaces any
// previous one. Format defaults to html.
func (s *SummaryService) SummarizeConversation(ctx context.Context, in SummarizeInput) (domain.Summary, error) {
	format := in.Format
	if format == "" {
		format = domain.FormatHTML
	}
	conv, turns, err := s.load(ctx, in.ConversationID, in.Account)
	if err != nil {
		return domain.Summary{}, err
	}
	content, err := s.summarizer.Summarize(ctx, turns, format, speakerName(conv, in.Account))
	if err != nil {
		return domain.Summary{}, err
	}
	saved, err := s.summaries.UpsertSummary(ctx, domain.Summary{
		ConversationID: conv.ID,
		AccountID:      conv.AccountID,
		Kind:           domain.SummaryKindSession,
		Format:         format,
		Content:        content,
	})
	if err != nil {
		return domain.Summary{}, newError(ErrorInternal, "summary_save_error", err)
	}
	s.log.InfoContext(ctx, "summary saved", "conversationId", conv.ID, "format", string(format))
	return saved, nil
}

// GetSummary returns the stored session summary.
func (s *SummaryService) GetSummary(ctx context.Context, conversationID string, account domain.Account) (domain.Summary, error) {
	conv, err := s.conversation(ctx, conversationID, account)
	if err != nil {
		return domain.Summary{}, err
	}
	sum, err := s.summaries.GetSummary(ctx, conv.ID, domain.SummaryKindSession)
	if err != nil {
		return domain.Summary{}, storeFailure("summary_load_error", err)
	}
	return sum, nil
}

// ExportMarkdown generates a fresh markdown summary for download. It is not
// stored.
func (s *SummaryService) ExportMarkdown(ctx context.Context, conversationID string, account domain.Account) (MarkdownExport, error) {
	conv, turns, err := s.load(ctx, conversationID, account)
	if err != nil {
		return MarkdownExport{}, err
	}
	content, err := s.summarizer.Summarize(ctx, turns, domain.FormatMarkdown, speakerName(conv, account))
	if err != nil {
		return MarkdownExport{}, err
	}
	return MarkdownExport{
		Filename: fmt.Sprintf("interview_%s_summary.md", conv.ID),
		Content:  content,
	}, nil
}

func (s *SummaryService) conversation(ctx context.Context, conversationID string, account domain.Account) (domain.Conversation, error) {
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

func (s *SummaryService) load(ctx context.Context, conversationID string, account domain.Account) (domain.Conversation, []domain.ChatMessage, error) {
	conv, err := s.conversation(ctx, conversationID, account)
	if err != nil {
		return domain.Conversation{}, nil, err
	}
	turns, err := s.conversations.GetHistory(ctx, conv.ID)
	if err != nil {
		return domain.Conversation{}, nil, storeFailure("history_load_error", err)
	}
	return conv, turnsToMessages(turns), nil
}

// speakerName is only personal when the caller owns the conversation; an
// admin summarizing someone else's interview gets the placeholder.
func speakerName(conv domain.Conversation, account domain.Account) string {
	if conv.AccountID == account.ID {
		return account.Name
	}
	return ""
}
