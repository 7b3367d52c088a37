package usecase

import (
	"fmt"
	"strings"

	"lifestory-agent/internal/domain"
)

const (
	warmInterviewerPrompt    = "You are a kind, patient biographer interviewing an elderly person. Ask one question at a time. Keep questions short, warm, and specific."
	neutralInterviewerPrompt = "You are a biographer interviewing a person about their life story. Ask one question at a time and keep each question focused on a single topic."

	pivotInstruction = "The conversation appears to be staying on the same topic. Please gracefully pivot to a different aspect of the person's life that has not been covered yet. Avoid repeating prior questions. Offer a fresh angle (e.g., childhood, school, work, relationships, hobbies, travels, traditions, or turning points). Ask exactly one concise, warm question to begin the new topic."

	summarySystemPrompt = "You are an expert biographer and editor. Given an interview transcript, produce an engaging, well-organized, and visually engaging personal history. Write warmly, faithful to the speaker's voice. Avoid inventing facts."
	summaryLeadIn       = "Here is the interview transcript:"
	speakerPlaceholder  = "the speaker"

	untitledTopic  = "Untitled Topic"
	maxSuggestions = 10
)

var recommendedTopics = []string{
	"Childhood",
	"Family",
	"School",
	"Work and Career",
	"Relationships",
	"Marriage",
	"Children",
	"Hobbies",
	"Travel",
	"Traditions",
	"Turning Points",
	"Faith and Beliefs",
	"Homes and Places Lived",
	"Military Service",
	"Community Service",
	"Health and Challenges",
	"Technology in Your Life",
	"Daily Life and Routines",
	"Holidays and Celebrations",
	"Favorite Books and Movies",
	"Lessons Learned",
	"Advice to Descendants",
}

// SuggestTopics returns up to ten recommended topics whose names are not
// already used as a conversation title, compared case-insensitively.
func SuggestTopics(existing []string) []string {
	used := make(map[string]struct{}, len(existing))
	for _, title := range existing {
		used[strings.ToLower(strings.TrimSpace(title))] = struct{}{}
	}
	out := make([]string, 0, maxSuggestions)
	for _, topic := range recommendedTopics {
		if _, ok := used[strings.ToLower(topic)]; ok {
			continue
		}
		out = append(out, topic)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// assembleMessages places the style block into the system position of the
// outgoing conversation. An existing leading system turn is extended;
// otherwise a base interviewer instruction is synthesized.
func assembleMessages(history []domain.ChatMessage, block string, personaActive bool) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history)+1)
	if len(history) > 0 && history[0].Role == domain.RoleSystem {
		first := history[0]
		if block != "" {
			first.Content = first.Content + "\n\n" + block
		}
		out = append(out, first)
		return append(out, history[1:]...)
	}

	base := warmInterviewerPrompt
	if personaActive {
		base = neutralInterviewerPrompt
	}
	if block != "" {
		base = base + "\n\n" + block
	}
	out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: base})
	return append(out, history...)
}

func turnsToMessages(turns []domain.Turn) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, domain.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return out
}

func summaryInstructions(format domain.Format, speakerName string) string {
	name := strings.TrimSpace(speakerName)
	if name == "" {
		name = speakerPlaceholder
	}
	switch format {
	case domain.FormatMarkdown:
		return fmt.Sprintf("Return Markdown beginning with: # From the personal history of %s ❤️ (emoji at the end). "+
			"Then an introductory paragraph, ## Chapters (### per chapter), ## Themes as a bullet list, and ## Timeline if applicable. "+
			"Emphasize 3–7 standout phrases with *italics*. Do not include code fences.", name)
	case domain.FormatText:
		return fmt.Sprintf("Return plain text beginning with the line: From the personal history of %s. "+
			"Then a short introduction, a CHAPTERS section with a titled paragraph per chapter, a THEMES section with one theme per line, "+
			"and a TIMELINE section of dated events if any can be inferred. Do not use Markdown, HTML, or code fences.", name)
	default:
		return fmt.Sprintf("Return RAW HTML (no Markdown fences) with these sections in order: "+
			"<h1>From the personal history of %s ❤️</h1> (emoji at the end), a short <p> intro, "+
			"<h2>Chapters 📖</h2> with multiple <section> elements each containing <h3>Chapter title 🔸</h3> and <p> blocks, "+
			"a <h2>Themes 🎯</h2> list (<ul><li>), and <h2>Timeline 🗓️</h2> of dated events if present. "+
			"Wrap 3–7 standout phrases in <em class='standout'>…</em> to subtly highlight them. "+
			"Use only simple tags: h1,h2,h3,p,section,ul,ol,li,blockquote,em,strong. DO NOT include any backticks or code fences.", name)
	}
}

func serializeTranscript(turns []domain.ChatMessage) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}

func buildSummaryMessages(turns []domain.ChatMessage, format domain.Format, speakerName string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: summarySystemPrompt},
		{Role: domain.RoleUser, Content: summaryInstructions(format, speakerName)},
		{Role: domain.RoleUser, Content: summaryLeadIn},
		{Role: domain.RoleUser, Content: serializeTranscript(turns)},
	}
}

// StripCodeFences removes a leading fence line (with or without a language
// tag) and a trailing fence from model output. Text without fences is only
// trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return untitledTopic
	}
	return title
}
