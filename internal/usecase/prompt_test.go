package usecase

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"lifestory-agent/internal/domain"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "html fence", in: "```html\n<h1>X</h1>\n```", want: "<h1>X</h1>"},
		{name: "bare fence", in: "```\n# Title\nbody\n```", want: "# Title\nbody"},
		{name: "no fence", in: "  <p>plain</p>\n", want: "<p>plain</p>"},
		{name: "leading fence only", in: "```markdown\n# Title", want: "# Title"},
		{name: "fence without newline", in: "```", want: ""},
		{name: "surrounding whitespace", in: "\n\n```html\n<p>a</p>\n```\n\n", want: "<p>a</p>"},
		{name: "inner fence kept", in: "text with ``` inside", want: "text with ``` inside"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestSummaryInstructions_Name(t *testing.T) {
	html := summaryInstructions(domain.FormatHTML, "Jane")
	require.Contains(t, html, "<h1>From the personal history of Jane ❤️</h1>")
	require.Contains(t, html, "DO NOT include any backticks or code fences.")
	require.Contains(t, html, "3–7 standout phrases")

	require.Contains(t, summaryInstructions(domain.FormatHTML, "  "), "From the personal history of the speaker")

	md := summaryInstructions(domain.FormatMarkdown, "Jane")
	require.True(t, strings.HasPrefix(md, "Return Markdown beginning with: # From the personal history of Jane ❤️"))
	require.Contains(t, md, "## Timeline")

	text := summaryInstructions(domain.FormatText, "")
	require.Contains(t, text, "From the personal history of the speaker")
	require.Contains(t, text, "TIMELINE")
}

func TestBuildSummaryMessages(t *testing.T) {
	got := buildSummaryMessages([]domain.ChatMessage{
		{Role: domain.RoleAssistant, Content: "Where did you grow up?"},
		{Role: domain.RoleUser, Content: "On a farm."},
	}, domain.FormatMarkdown, "Jane")

	want := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: summarySystemPrompt},
		{Role: domain.RoleUser, Content: summaryInstructions(domain.FormatMarkdown, "Jane")},
		{Role: domain.RoleUser, Content: "Here is the interview transcript:"},
		{Role: domain.RoleUser, Content: "assistant: Where did you grow up?\nuser: On a farm."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary messages mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleMessages_ExtendsLeadingSystemTurn(t *testing.T) {
	got := assembleMessages([]domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "base"},
		{Role: domain.RoleUser, Content: "hi"},
	}, "BLOCK", true)

	want := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "base\n\nBLOCK"},
		{Role: domain.RoleUser, Content: "hi"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("assembled mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleMessages_DoesNotMutateHistory(t *testing.T) {
	history := []domain.ChatMessage{{Role: domain.RoleSystem, Content: "base"}}
	_ = assembleMessages(history, "BLOCK", true)
	require.Equal(t, "base", history[0].Content)
}

func TestAssembleMessages_SynthesizesBase(t *testing.T) {
	history := []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}}

	warm := assembleMessages(history, "", false)
	require.Len(t, warm, 2)
	require.Equal(t, domain.ChatMessage{Role: domain.RoleSystem, Content: warmInterviewerPrompt}, warm[0])

	neutral := assembleMessages(history, "BLOCK", true)
	require.Equal(t, neutralInterviewerPrompt+"\n\nBLOCK", neutral[0].Content)
	require.Equal(t, history[0], neutral[1])

	personaNoBlock := assembleMessages(history, "", true)
	require.Equal(t, neutralInterviewerPrompt, personaNoBlock[0].Content)
}

func TestAssembleMessages_EmptyHistory(t *testing.T) {
	got := assembleMessages(nil, "", false)
	require.Equal(t, []domain.ChatMessage{{Role: domain.RoleSystem, Content: warmInterviewerPrompt}}, got)
}

func TestSuggestTopics(t *testing.T) {
	all := SuggestTopics(nil)
	require.Len(t, all, 10)
	require.Equal(t, "Childhood", all[0])

	got := SuggestTopics([]string{" childhood ", "FAMILY", "Something else"})
	require.Len(t, got, 10)
	require.Equal(t, "School", got[0])
	require.NotContains(t, got, "Childhood")
	require.NotContains(t, got, "Family")
	require.Contains(t, got, "Travel")
}

func TestSuggestTopics_FewRemaining(t *testing.T) {
	got := SuggestTopics(recommendedTopics[:20])
	require.Equal(t, []string{"Lessons Learned", "Advice to Descendants"}, got)
}

func TestNormalizeTitle(t *testing.T) {
	require.Equal(t, "Untitled Topic", normalizeTitle("   "))
	require.Equal(t, "Childhood", normalizeTitle(" Childhood "))
}
