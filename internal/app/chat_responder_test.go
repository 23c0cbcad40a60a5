package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria-chat/internal/ai"
	"aria-chat/internal/model"
)

type recordingCompleter struct {
	got   []ai.ChatMessage
	reply string
	err   error
}

func (c *recordingCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	c.got = messages
	return c.reply, c.err
}

type recentStub []model.ChatMessage

func (r recentStub) ListRecentBySessionID(context.Context, string, int) ([]model.ChatMessage, error) {
	return r, nil
}

func TestSimulatedResponder(t *testing.T) {
	out, err := SimulatedResponder{}.Respond(context.Background(), "s", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, `"hello"`)
	assert.Contains(t, out, "simulated response")
}

func TestLLMResponderUsesPersistedHistory(t *testing.T) {
	completer := &recordingCompleter{reply: "  hi!  "}
	history := recentStub{
		{Role: model.RoleUser, Content: "earlier"},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleUser, Content: "now"},
	}

	out, err := NewLLMResponder(completer, history, 10).Respond(context.Background(), "s", "now")
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
	require.Len(t, completer.got, 3)
	assert.Equal(t, "assistant", completer.got[1].Role)
	assert.Equal(t, "now", completer.got[2].Content)
}

func TestLLMResponderAppendsMissingUserMessage(t *testing.T) {
	completer := &recordingCompleter{reply: ""}

	out, err := NewLLMResponder(completer, recentStub{}, 0).Respond(context.Background(), "s", "first")
	require.NoError(t, err)
	assert.Equal(t, "The model returned an empty response.", out)
	require.Len(t, completer.got, 1)
	assert.Equal(t, "user", completer.got[0].Role)
}

func TestLLMResponderPropagatesError(t *testing.T) {
	completer := &recordingCompleter{err: errBoom}
	_, err := NewLLMResponder(completer, recentStub{}, 5).Respond(context.Background(), "s", "x")
	assert.ErrorIs(t, err, errBoom)
}
