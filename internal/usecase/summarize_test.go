package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"lifestory-agent/internal/domain"
)

type summaryHarness struct {
	convs     *fakeConversations
	summaries *fakeSummaries
	backend   *fakeBackend
	selector  *fakeSelector
	svc       *SummaryService
}

func newSummaryHarness(t *testing.T) *summaryHarness {
	t.Helper()
	h := &summaryHarness{
		convs:     newFakeConversations(domain.Conversation{ID: "c1", AccountID: owner.ID, Title: "Childhood"}),
		summaries: newFakeSummaries(),
		backend:   &fakeBackend{},
	}
	h.selector = &fakeSelector{backend: h.backend}
	svc, err := NewSummaryService(h.convs, h.summaries, h.selector, nil)
	require.NoError(t, err)
	h.svc = svc
	h.convs.seed("c1",
		domain.ChatMessage{Role: domain.RoleAssistant, Content: "Where did you grow up?"},
		domain.ChatMessage{Role: domain.RoleUser, Content: "On a farm in Ohio."},
	)
	return h
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	sel := &fakeSelector{backend: &fakeBackend{}}
	s, err := NewSummarizer(sel)
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), nil, domain.FormatHTML, "Jane")
	requireCode(t, err, ErrorEmptyTranscript)
	require.Zero(t, sel.selected)
	require.Empty(t, sel.backend.calls)
}

func TestSummarize_StripsFencesAndBuildsPrompt(t *testing.T) {
	backend := &fakeBackend{replies: []string{"```html\n<h1>From the personal history of Jane ❤️</h1>\n```"}}
	s, err := NewSummarizer(&fakeSelector{backend: backend})
	require.NoError(t, err)

	turns := []domain.ChatMessage{{Role: domain.RoleUser, Content: "I was born in 1940."}}
	got, err := s.Summarize(context.Background(), turns, domain.FormatHTML, "Jane")
	require.NoError(t, err)
	require.Equal(t, "<h1>From the personal history of Jane ❤️</h1>", got)

	sent := backend.lastCall()
	require.Len(t, sent, 4)
	require.Equal(t, summarySystemPrompt, sent[0].Content)
	require.Contains(t, sent[1].Content, "Jane")
	require.Equal(t, "user: I was born in 1940.", sent[3].Content)
}

func TestSummarize_ProviderFailure(t *testing.T) {
	s, err := NewSummarizer(&fakeSelector{backend: &fakeBackend{err: rateLimited()}})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "x"}}, domain.FormatText, "")
	requireCode(t, err, ErrorRateLimited)
}

func TestSummarizeConversation_UpsertsSingleSessionSummary(t *testing.T) {
	h := newSummaryHarness(t)
	h.backend.replies = []string{"<h1>first</h1>", "```html\n<h1>second</h1>\n```"}
	ctx := context.Background()

	first, err := h.svc.SummarizeConversation(ctx, SummarizeInput{ConversationID: "c1", Account: owner})
	require.NoError(t, err)
	require.Equal(t, "<h1>first</h1>", first.Content)
	require.Equal(t, domain.FormatHTML, first.Format)

	second, err := h.svc.SummarizeConversation(ctx, SummarizeInput{ConversationID: "c1", Account: owner})
	require.NoError(t, err)

	require.Len(t, h.summaries.items, 1)
	stored, err := h.svc.GetSummary(ctx, "c1", owner)
	require.NoError(t, err)
	require.Equal(t, domain.SummaryKindSession, stored.Kind)
	require.Equal(t, "<h1>second</h1>", stored.Content)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestSummarizeConversation_SpeakerName(t *testing.T) {
	h := newSummaryHarness(t)

	_, err := h.svc.SummarizeConversation(context.Background(), SummarizeInput{ConversationID: "c1", Account: owner, Format: domain.FormatMarkdown})
	require.NoError(t, err)
	require.Contains(t, h.backend.lastCall()[1].Content, "From the personal history of Jane")

	_, err = h.svc.SummarizeConversation(context.Background(), SummarizeInput{ConversationID: "c1", Account: admin, Format: domain.FormatMarkdown})
	require.NoError(t, err)
	require.Contains(t, h.backend.lastCall()[1].Content, "From the personal history of the speaker")
	require.Equal(t, owner.ID, h.summaries.items["c1/session"].AccountID)
}

func TestSummarizeConversation_Errors(t *testing.T) {
	h := newSummaryHarness(t)
	ctx := context.Background()

	_, err := h.svc.SummarizeConversation(ctx, SummarizeInput{ConversationID: "c1", Account: other})
	requireCode(t, err, ErrorForbidden)

	_, err = h.svc.SummarizeConversation(ctx, SummarizeInput{ConversationID: "nope", Account: owner})
	requireCode(t, err, ErrorNotFound)

	h.convs.convs["c2"] = domain.Conversation{ID: "c2", AccountID: owner.ID}
	_, err = h.svc.SummarizeConversation(ctx, SummarizeInput{ConversationID: "c2", Account: owner})
	requireCode(t, err, ErrorEmptyTranscript)

	h.summaries.err = errors.New("provisioned throughput exceeded")
	_, err = h.svc.SummarizeConversation(ctx, SummarizeInput{ConversationID: "c1", Account: owner})
	requireCode(t, err, ErrorInternal)
}

func TestGetSummary_NotFound(t *testing.T) {
	h := newSummaryHarness(t)
	_, err := h.svc.GetSummary(context.Background(), "c1", owner)
	requireCode(t, err, ErrorNotFound)
}

func TestExportMarkdown(t *testing.T) {
	h := newSummaryHarness(t)
	h.backend.replies = []string{"```markdown\n# From the personal history of Jane ❤️\n\nIntro.\n```"}

	out, err := h.svc.ExportMarkdown(context.Background(), "c1", owner)
	require.NoError(t, err)
	require.Equal(t, "interview_c1_summary.md", out.Filename)
	require.Equal(t, "# From the personal history of Jane ❤️\n\nIntro.", out.Content)
	require.Contains(t, h.backend.lastCall()[1].Content, "Return Markdown")
	require.Empty(t, h.summaries.items)
}
