package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/agent"
	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/llm"
	"github.com/teemow/inboxchat/internal/store"
	"github.com/teemow/inboxchat/internal/tools"
	"github.com/teemow/inboxchat/internal/tools/gmail_tools"
)

type failingStore struct {
	*store.Memory
	fail bool
}

func (f *failingStore) Save(ctx context.Context, doc *conversation.Document) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, doc)
}

type testEnv struct {
	srv   *httptest.Server
	model *llm.Scripted
	store *failingStore
	http  *http.Client
}

func newTestEnv(t *testing.T, steps ...llm.ScriptStep) *testEnv {
	t.Helper()

	sc := NewServerContext(context.Background(), nil, nil, nil)
	registry := tools.NewRegistry()
	require.NoError(t, gmail_tools.RegisterGmailTools(registry, sc, true))

	model := llm.NewScripted(steps...)
	a, err := agent.New(agent.Config{Model: model, Tools: registry})
	require.NoError(t, err)

	st := &failingStore{Memory: store.NewMemory()}
	mgr := chat.NewManager(chat.Config{Runner: a, Store: st, IdleTimeout: -1})

	s, err := New(Config{Manager: mgr, Store: st, Context: sc})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{srv: srv, model: model, store: st, http: &http.Client{Jar: jar}}
}

func (e *testEnv) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.http.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestIndexSetsClientCookie(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.http.Get(e.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == clientCookie {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "client cookie should be set")
}

func TestMessageAndEndSession(t *testing.T) {
	e := newTestEnv(t, llm.Answer("You have no new mail."))

	var before SessionView
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/session", "", &before))
	assert.Zero(t, before.MessageCount)

	var reply MessageResponse
	status := e.do(t, http.MethodPost, "/api/messages", `{"message":"anything new?"}`, &reply)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "You have no new mail.", reply.Reply)
	assert.Equal(t, before.SessionID, reply.SessionID)
	assert.Equal(t, 2, reply.MessageCount)
	require.Len(t, reply.Turns, 2)
	assert.Equal(t, "user", reply.Turns[0].Role)
	assert.Equal(t, "assistant", reply.Turns[1].Role)

	var ended EndResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/session/end", "", &ended))
	require.NotNil(t, ended.EndResult)
	assert.True(t, ended.Saved)
	assert.Equal(t, before.SessionID, ended.SessionID)
	assert.NotEqual(t, ended.SessionID, ended.NextSessionID)

	var doc conversation.Document
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/sessions/"+ended.SessionID, "", &doc))
	assert.Equal(t, 2, doc.TotalMessages)
	assert.Equal(t, []string{"anything new?"}, doc.UserInputs)

	var list struct {
		Sessions []conversation.Summary `json:"sessions"`
		Count    int                    `json:"count"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/sessions?limit=5", "", &list))
	assert.Equal(t, 1, list.Count)
}

func TestEmptyMessageRejected(t *testing.T) {
	e := newTestEnv(t)

	var body map[string]string
	status := e.do(t, http.MethodPost, "/api/messages", `{"message":"   "}`, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
	assert.Empty(t, e.model.Requests())
}

func TestAuthRequiredReply(t *testing.T) {
	e := newTestEnv(t,
		llm.Calls(llm.ToolCall{ID: "c1", Name: "gmail_get_recent_emails", Arguments: map[string]any{}}),
		llm.Answer("I need you to sign in first."),
	)

	var reply MessageResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/messages", `{"message":"show my inbox"}`, &reply))
	assert.True(t, reply.AuthRequired)
	assert.Equal(t, chat.AuthNotice, reply.Notice)
}

func TestModelFailureKeepsSession(t *testing.T) {
	e := newTestEnv(t, llm.Fail(errors.New("rate limited")), llm.Answer("ok"))

	var reply MessageResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/messages", `{"message":"hi"}`, &reply))
	assert.NotEmpty(t, reply.Error)
	require.Len(t, reply.Turns, 2)
	assert.True(t, reply.Turns[1].IsError)

	var next MessageResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/messages", `{"message":"again"}`, &next))
	assert.Empty(t, next.Error)
	assert.Equal(t, "ok", next.Reply)
	assert.Equal(t, 4, next.MessageCount)
	assert.Equal(t, reply.SessionID, next.SessionID)
}

func TestEndSessionSaveFailure(t *testing.T) {
	e := newTestEnv(t, llm.Answer("hello"))
	e.store.fail = true

	var reply MessageResponse
	e.do(t, http.MethodPost, "/api/messages", `{"message":"hi"}`, &reply)

	var ended EndResponse
	status := e.do(t, http.MethodPost, "/api/session/end", "", &ended)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.NotEmpty(t, ended.Warning)

	var snap SessionView
	e.do(t, http.MethodGet, "/api/session", "", &snap)
	assert.Equal(t, reply.SessionID, snap.SessionID)
	assert.Equal(t, 2, snap.MessageCount)

	e.store.fail = false
	status = e.do(t, http.MethodPost, "/api/session/end", "", &ended)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, ended.Saved)
}

func TestGetUnknownSession(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/sessions/missing", "", nil))
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/sessions?limit=x", "", nil))
}

func TestAuthLoginWithoutCredentials(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/auth/login", "", nil))
}

func TestWebsocketStreamsTurns(t *testing.T) {
	e := newTestEnv(t,
		llm.Calls(llm.ToolCall{ID: "c1", Name: "gmail_get_recent_emails", Arguments: map[string]any{"max_results": 5}}),
		llm.Answer("Please sign in."),
	)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(inboundFrame{Type: frameMessage, Text: "latest mail?"}))

	var roles []string
	var reply *MessageResponse
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for reply == nil {
		var f outboundFrame
		require.NoError(t, conn.ReadJSON(&f))
		switch f.Type {
		case frameTurn:
			roles = append(roles, f.Turn.Role)
		case frameReply:
			reply = f.Reply
		default:
			t.Fatalf("unexpected frame %q: %s", f.Type, f.Error)
		}
	}

	assert.Equal(t, []string{"user", "assistant", "tool", "assistant"}, roles)
	assert.True(t, reply.AuthRequired)
	assert.Equal(t, 4, reply.MessageCount)

	require.NoError(t, conn.WriteJSON(inboundFrame{Type: frameEnd}))
	var f outboundFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, frameEnded, f.Type)
	require.NotNil(t, f.Ended.EndResult)
	assert.True(t, f.Ended.Saved)
	require.NotNil(t, f.Session)
	assert.Equal(t, f.Ended.NextSessionID, f.Session.SessionID)
}

func TestWebsocketFullInboxReportsBusy(t *testing.T) {
	s := &Server{logger: slog.New(slog.DiscardHandler)}
	inbox := make(chan inboundFrame, 1)
	inbox <- inboundFrame{Type: frameMessage, Text: "first"}
	send := make(chan outboundFrame, 1)

	done := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.wsReadPump(conn, inbox, send)
		close(done)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: frameMessage, Text: "second"}))

	select {
	case f := <-send:
		assert.Equal(t, frameError, f.Type)
		assert.Equal(t, busyMessage, f.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("no busy frame sent")
	}

	require.NoError(t, conn.Close())
	<-done
	require.Len(t, inbox, 1)
	assert.Equal(t, "first", (<-inbox).Text)
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	var health DetailedHealthResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz/detailed", "", &health))
	assert.False(t, health.Authenticated)
	assert.Equal(t, healthStatusOK, health.Store)
	assert.Zero(t, health.ActiveSessions)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/readyz", "", nil))

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/", "", nil))
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz/detailed", "", &health))
	assert.Equal(t, 1, health.ActiveSessions)
}
