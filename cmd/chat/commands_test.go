package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/knowledge-chat/internal/answer"
	"github.com/capitalize-ai/knowledge-chat/internal/app"
	"github.com/capitalize-ai/knowledge-chat/internal/config"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

func testOpener(t *testing.T) openFunc {
	t.Helper()
	cfg := &config.Config{
		StoreBackend:   config.BackendBolt,
		StorePath:      filepath.Join(t.TempDir(), "chat.db"),
		StoreKey:       "conversations",
		AnswerProvider: config.ProviderMock,
		AnswerTimeout:  time.Second,
	}
	return func(ctx context.Context) (*app.Runtime, error) {
		return app.Build(ctx, cfg, logger.NewNop())
	}
}

func execute(t *testing.T, open openFunc, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd := newRootCmd(open)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestList_Empty(t *testing.T) {
	out, err := execute(t, testOpener(t), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations yet")
}

func TestSend_WithoutConversation(t *testing.T) {
	_, err := execute(t, testOpener(t), "send", "hello")
	assert.ErrorContains(t, err, "no active conversation")
}

func TestNewSendShow(t *testing.T) {
	open := testOpener(t)

	out, err := execute(t, open, "new")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = execute(t, open, "send", "How", "do", "I", "reset", "my", "password?")
	require.NoError(t, err)
	assert.Contains(t, out, `assistant: Here's a response to your message: "How do I reset my password?"`)
	assert.Contains(t, out, answer.MockSourceTitle+" <"+answer.MockSourceURL+">")

	out, err = execute(t, open, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* "+id+"  How do I reset my password?...  (3 messages)")

	out, err = execute(t, open, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "assistant: "+model.Greeting)
	assert.Contains(t, out, "user: How do I reset my password?")
}

func TestSend_ToSelectedConversation(t *testing.T) {
	open := testOpener(t)

	out, err := execute(t, open, "new")
	require.NoError(t, err)
	first := strings.TrimSpace(out)

	_, err = execute(t, open, "new")
	require.NoError(t, err)

	_, err = execute(t, open, "send", "--conversation", first, "hi")
	require.NoError(t, err)

	out, err = execute(t, open, "show", first)
	require.NoError(t, err)
	assert.Contains(t, out, "# hi... ("+first+")")
}

func TestShow_Unknown(t *testing.T) {
	_, err := execute(t, testOpener(t), "show", "missing")
	assert.ErrorContains(t, err, "conversation not found")
}
