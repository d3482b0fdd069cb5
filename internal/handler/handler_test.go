package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/knowledge-chat/internal/answer"
	"github.com/capitalize-ai/knowledge-chat/internal/controller"
	"github.com/capitalize-ai/knowledge-chat/internal/middleware"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/internal/store"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

type testEnv struct {
	ctrl   *controller.Controller
	hub    *Hub
	router http.Handler
}

func newTestEnv(t *testing.T, checks ...ReadinessCheck) *testEnv {
	t.Helper()
	return newTestEnvWith(t, func(cfg *RouterConfig) { cfg.Checks = checks })
}

func newTestEnvWith(t *testing.T, configure func(cfg *RouterConfig)) *testEnv {
	t.Helper()

	n := 0
	st := store.New(store.WithIDFunc(func() string {
		n++
		return fmt.Sprintf("conv-%d", n)
	}))
	hub := NewHub()
	log := logger.NewNop()
	ctrl := controller.New(st, answer.NewMockProvider(0), log, controller.WithHook(hub.Hook()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctrl.Wait(ctx)
	})

	cfg := RouterConfig{
		Controller: ctrl,
		Hub:        hub,
		Logger:     log,
	}
	if configure != nil {
		configure(&cfg)
	}

	return &testEnv{
		ctrl:   ctrl,
		hub:    hub,
		router: NewRouter(cfg),
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.ctrl.Wait(ctx))
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) model.State {
	t.Helper()
	var st model.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	env = newTestEnv(t, ReadinessCheck{
		Name:  "nats",
		Check: func(context.Context) error { return errors.New("not connected") },
	})
	rec = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "nats: not connected")
}

func TestState_Welcome(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversations":[],"activeConversationId":null,"isLoading":false}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/active", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/conversations", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp model.CreateConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, model.DefaultTitle, conv.Title)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, model.Greeting, conv.Messages[0].Content)
}

func TestSelectConversation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/conversations", "")
	env.do(t, http.MethodPost, "/api/v1/conversations", "")

	rec := env.do(t, http.MethodPut, "/api/v1/active", `{"id":"conv-1"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	st := decodeState(t, env.do(t, http.MethodGet, "/api/v1/state", ""))
	require.NotNil(t, st.ActiveConversationID)
	assert.Equal(t, "conv-1", *st.ActiveConversationID)
	require.Len(t, st.Conversations, 2)
	assert.Equal(t, "conv-2", st.Conversations[0].ID)
}

func TestSelectConversation_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/conversations", "")

	rec := env.do(t, http.MethodPut, "/api/v1/active", `{"id":"missing"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	st := decodeState(t, env.do(t, http.MethodGet, "/api/v1/state", ""))
	require.NotNil(t, st.ActiveConversationID)
	assert.Equal(t, "missing", *st.ActiveConversationID)
	assert.Len(t, st.Conversations, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/active", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectConversation_BadRequest(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/v1/active", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/v1/active", `{}`).Code)
}

func TestSubmitMessage(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/conversations", "")

	rec := env.do(t, http.MethodPost, "/api/v1/messages", `{"text":"Where is the onboarding guide?"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.wait(t)

	st := decodeState(t, env.do(t, http.MethodGet, "/api/v1/state", ""))
	assert.False(t, st.IsLoading)
	require.Len(t, st.Conversations, 1)

	conv := st.Conversations[0]
	assert.Equal(t, "Where is the onboarding guide?...", conv.Title)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, model.RoleUser, conv.Messages[1].Role)
	assert.Equal(t, model.RoleAssistant, conv.Messages[2].Role)
	require.Len(t, conv.Messages[2].Sources, 1)
	assert.Equal(t, answer.MockSourceTitle, conv.Messages[2].Sources[0].Title)
}

func TestSubmitMessage_NoActiveConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/messages", `{"text":"hello"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	env.wait(t)

	st := decodeState(t, env.do(t, http.MethodGet, "/api/v1/state", ""))
	assert.Empty(t, st.Conversations)
}

func TestSubmitMessage_BadRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/messages", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	assert.Equal(t, "state", first.name)
	assert.JSONEq(t, `{"conversations":[],"activeConversationId":null,"isLoading":false}`, first.data)

	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	res, err := srv.Client().Post(srv.URL+"/api/v1/conversations", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	res.Body.Close()

	created := readEvent(t, reader)
	assert.Equal(t, string(model.EventConversationCreated), created.name)

	var ev StateEvent
	require.NoError(t, json.Unmarshal([]byte(created.data), &ev))
	assert.Equal(t, "conv-1", ev.ConversationID)
	require.Len(t, ev.State.Conversations, 1)
	require.NotNil(t, ev.State.ActiveConversationID)
	assert.Equal(t, "conv-1", *ev.State.ActiveConversationID)

	cancel()
	require.Eventually(t, func() bool { return env.hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_DropsOldestWhenFull(t *testing.T) {
	hub := NewHub()
	sub, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Publish(controller.Change{ConversationID: fmt.Sprintf("c%d", i)})
	}

	require.Len(t, sub, subscriberBuffer)
	var last controller.Change
	for len(sub) > 0 {
		last = <-sub
	}
	assert.Equal(t, fmt.Sprintf("c%d", subscriberBuffer+2), last.ConversationID)
}

func TestSubmitMessage_LargeText(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/conversations", "")

	text := strings.Repeat("a", 2<<20)
	body, err := json.Marshal(&model.SubmitMessageRequest{Text: text})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/messages", string(body))
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.wait(t)

	conv, ok := env.ctrl.ActiveConversation()
	require.True(t, ok)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, text, conv.Messages[1].Content)
}

const testSecret = "test-secret"

func bearer(t *testing.T, scopes ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestAuth_WriteScopeRequired(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *RouterConfig) {
		cfg.AuthEnabled = true
		cfg.JWTSecret = testSecret
	})

	send := func(method, path, body, auth string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec.Code
	}

	readOnly := bearer(t, "chat:read")
	writer := bearer(t, "chat:read", middleware.ScopeChatWrite)

	assert.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/api/v1/state", "", ""))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/state", "", readOnly))

	assert.Equal(t, http.StatusForbidden, send(http.MethodPost, "/api/v1/conversations", "", readOnly))
	assert.Equal(t, http.StatusForbidden, send(http.MethodPut, "/api/v1/active", `{"id":"conv-1"}`, readOnly))
	assert.Equal(t, http.StatusForbidden, send(http.MethodPost, "/api/v1/messages", `{"text":"hi"}`, readOnly))
	assert.Empty(t, env.ctrl.State().Conversations)

	assert.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/v1/conversations", "", writer))
	assert.Equal(t, http.StatusNoContent, send(http.MethodPut, "/api/v1/active", `{"id":"conv-1"}`, writer))
	assert.Equal(t, http.StatusAccepted, send(http.MethodPost, "/api/v1/messages", `{"text":"hi"}`, writer))
	env.wait(t)

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/active", "", readOnly))
}

func TestCORS_ConfiguredOrigins(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *RouterConfig) {
		cfg.CORSOrigins = []string{"https://chat.example.com"}
	})

	preflight := func(origin string) string {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec.Header().Get("Access-Control-Allow-Origin")
	}

	assert.Equal(t, "https://chat.example.com", preflight("https://chat.example.com"))
	assert.Empty(t, preflight("https://elsewhere.example.com"))
}
