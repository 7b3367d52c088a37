package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"lifestory-agent/internal/domain"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: s}}},
		}},
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	require.ErrorContains(t, err, "api key")

	c, err := NewClient(context.Background(), "key", "", withModels(&fakeModels{}))
	require.NoError(t, err)
	require.Equal(t, DefaultModel, c.Model())
	require.Equal(t, Name, c.Name())
}

func TestChat_FlattensConversation(t *testing.T) {
	f := &fakeModels{resp: textResponse("\n Where did you go to school? \n")}
	c, err := NewClient(context.Background(), "key", "gemini-test", withModels(f))
	require.NoError(t, err)

	reply, err := c.Chat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "base"},
		{Role: domain.RoleUser, Content: "I was born in 1941."},
		{Role: domain.RoleAssistant, Content: "Where?"},
	})
	require.NoError(t, err)
	require.Equal(t, "Where did you go to school?", reply)
	require.Equal(t, "gemini-test", f.model)
	require.Len(t, f.contents, 1)
	require.Len(t, f.contents[0].Parts, 1)
	require.Equal(t, "system: base\nuser: I was born in 1941.\nassistant: Where?", f.contents[0].Parts[0].Text)
	require.NotNil(t, f.config.Temperature)
	require.InDelta(t, 0.4, *f.config.Temperature, 1e-6)
}

func TestChat_ErrorIsProviderError(t *testing.T) {
	cause := errors.New("quota exceeded")
	c, err := NewClient(context.Background(), "key", "", withModels(&fakeModels{err: cause}))
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), nil)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, Name, pe.Provider)
	require.ErrorIs(t, err, cause)
}

func TestChat_NoCandidates(t *testing.T) {
	c, err := NewClient(context.Background(), "key", "", withModels(&fakeModels{resp: &genai.GenerateContentResponse{}}))
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), nil)
	require.ErrorContains(t, err, "no candidates")
}
