package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"lifestory-agent/internal/domain"
)

type fakeGenerator struct {
	got  []*schema.Message
	resp *schema.Message
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	return f.resp, f.err
}

func newFakeClient(t *testing.T, g *fakeGenerator) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), "key", "", withGenerator(g))
	require.NoError(t, err)
	return c
}

type flat struct {
	Role    schema.RoleType
	Content string
}

func flatten(msgs []*schema.Message) []flat {
	out := make([]flat, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, flat{Role: m.Role, Content: m.Content})
	}
	return out
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), "  ", "")
	require.ErrorContains(t, err, "api key")

	c := newFakeClient(t, &fakeGenerator{})
	require.Equal(t, DefaultModel, c.Model())
	require.Equal(t, Name, c.Name())
}

func TestChat_SystemFieldAndTurns(t *testing.T) {
	g := &fakeGenerator{resp: schema.AssistantMessage("  What was your first job?  ", nil)}
	c := newFakeClient(t, g)

	reply, err := c.Chat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "  base\n\nBLOCK  "},
		{Role: domain.RoleUser, Content: "I grew up in Ohio."},
		{Role: domain.RoleAssistant, Content: "Tell me more."},
		{Role: domain.RoleSystem, Content: "Pivot now."},
	})
	require.NoError(t, err)
	require.Equal(t, "What was your first job?", reply)
	require.Equal(t, []flat{
		{schema.System, "base\n\nBLOCK"},
		{schema.User, "I grew up in Ohio."},
		{schema.Assistant, "Tell me more."},
		{schema.User, "[system] Pivot now."},
	}, flatten(g.got))
}

func TestChat_EmptyConversationFallbacks(t *testing.T) {
	g := &fakeGenerator{resp: schema.AssistantMessage("Hi there", nil)}
	c := newFakeClient(t, g)

	_, err := c.Chat(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []flat{
		{schema.System, fallbackSystem},
		{schema.User, "Hello"},
	}, flatten(g.got))
}

func TestChat_BlankSystemUsesFallback(t *testing.T) {
	g := &fakeGenerator{resp: schema.AssistantMessage("ok", nil)}
	c := newFakeClient(t, g)

	_, err := c.Chat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "   "},
		{Role: domain.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, fallbackSystem, g.got[0].Content)
	require.Len(t, g.got, 2)
}

func TestChat_ErrorIsProviderError(t *testing.T) {
	cause := errors.New("overloaded")
	c := newFakeClient(t, &fakeGenerator{err: cause})

	_, err := c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, Name, pe.Provider)
	require.ErrorIs(t, err, cause)
}

func TestChat_NilResponse(t *testing.T) {
	c := newFakeClient(t, &fakeGenerator{})
	_, err := c.Chat(context.Background(), nil)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
}
