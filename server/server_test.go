package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdrivechat/chat"
	"gdrivechat/mcp"
	"gdrivechat/storage"
)

type fakeChat struct {
	mu       sync.Mutex
	messages map[string][]string
	store    *storage.ConversationStore
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		messages: map[string][]string{},
		store:    storage.NewConversationStore(10),
	}
}

func (f *fakeChat) ProcessMessage(ctx context.Context, userID, message string) chat.Response {
	f.mu.Lock()
	f.messages[userID] = append(f.messages[userID], message)
	f.mu.Unlock()
	f.store.Append(userID, storage.Turn{Role: storage.RoleUser, Content: message})
	return chat.Response{Content: "echo: " + message, Type: chat.TypeText}
}

func (f *fakeChat) History(userID string) []storage.Turn { return f.store.History(userID) }

func (f *fakeChat) BackendLabel() string { return "protocol" }

func (f *fakeChat) seen(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages[userID]...)
}

type fakeTools struct {
	state mcp.State
	tools []mcptypes.Tool
}

func (f fakeTools) State() mcp.State       { return f.state }
func (f fakeTools) Tools() []mcptypes.Tool { return f.tools }

func newTestServer(t *testing.T, tools ToolSource) (*Server, *fakeChat) {
	t.Helper()
	fc := newFakeChat()
	return New(Options{
		Chat:           fc,
		Tools:          tools,
		Searcher:       storage.NewSearchIndex(fc.store),
		Users:          fc.store,
		DriveConnected: true,
	}), fc
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, fakeTools{state: mcp.StateConnected})

	rec := do(t, s, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["mcpState"])
	assert.Equal(t, true, body["mcpConnected"])
	assert.Equal(t, true, body["driveConnected"])
	assert.Equal(t, "protocol", body["backend"])
	assert.Equal(t, float64(0), body["users"])
	assert.Contains(t, body, "uptime")

	do(t, s, http.MethodPost, "/api/chat/message", "alice", `{"message":"hi"}`)
	do(t, s, http.MethodPost, "/api/chat/message", "bob", `{"message":"hi"}`)
	do(t, s, http.MethodPost, "/api/chat/message", "alice", `{"message":"again"}`)

	body = decode(t, do(t, s, http.MethodGet, "/api/health", "", ""))
	assert.Equal(t, float64(2), body["users"])
}

func TestHealthWithoutToolServer(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := decode(t, do(t, s, http.MethodGet, "/api/health", "", ""))
	assert.Equal(t, "disconnected", body["mcpState"])
	assert.Equal(t, false, body["mcpConnected"])
}

func TestPrompts(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/chat/prompts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Prompts []chat.QuickPrompt `json:"prompts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, chat.QuickPrompts(), body.Prompts)
}

func TestMessage(t *testing.T) {
	s, fc := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/chat/message", "alice", `{"message":"list my files"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Response chat.Response `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "echo: list my files", body.Response.Content)
	assert.Equal(t, chat.TypeText, body.Response.Type)
	assert.Equal(t, []string{"list my files"}, fc.seen("alice"))
}

func TestMessageRejections(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		body   string
		status int
	}{
		{"no user", "", `{"message":"hi"}`, http.StatusUnauthorized},
		{"empty message", "alice", `{"message":"  "}`, http.StatusBadRequest},
		{"missing message", "alice", `{}`, http.StatusBadRequest},
		{"not json", "alice", `hello`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fc := newTestServer(t, nil)
			rec := do(t, s, http.MethodPost, "/api/chat/message", tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decode(t, rec), "error")
			assert.Empty(t, fc.seen(tt.user))
		})
	}
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/chat/history", "", "").Code)

	body := decode(t, do(t, s, http.MethodGet, "/api/chat/history", "bob", ""))
	assert.Equal(t, []any{}, body["history"])

	do(t, s, http.MethodPost, "/api/chat/message", "bob", `{"message":"search for budget"}`)
	do(t, s, http.MethodPost, "/api/chat/message", "bob", `{"message":"show shared files"}`)
	do(t, s, http.MethodPost, "/api/chat/message", "carol", `{"message":"budget for carol"}`)

	var hist struct {
		History []storage.Turn `json:"history"`
	}
	rec := do(t, s, http.MethodGet, "/api/chat/history", "bob", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.History, 2)
	assert.Equal(t, "search for budget", hist.History[0].Content)

	var found struct {
		Matches []storage.TurnMatch `json:"matches"`
	}
	rec = do(t, s, http.MethodGet, "/api/chat/history?q=BUDGET", "bob", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found.Matches, 1)
	assert.Equal(t, "search for budget", found.Matches[0].Preview)
}

func TestTools(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		s, _ := newTestServer(t, fakeTools{
			state: mcp.StateConnected,
			tools: []mcptypes.Tool{
				{Name: "gdrive_search", Description: "Search Drive"},
				{Name: "gdrive_read_file", Description: "Read a file"},
			},
		})

		body := decode(t, do(t, s, http.MethodGet, "/api/mcp/tools", "", ""))
		assert.Equal(t, true, body["connected"])
		assert.Equal(t, float64(2), body["count"])
		tools := body["tools"].([]any)
		assert.Equal(t, "gdrive_search", tools[0].(map[string]any)["name"])
	})

	t.Run("disconnected", func(t *testing.T) {
		s, _ := newTestServer(t, fakeTools{state: mcp.StateFailed})

		body := decode(t, do(t, s, http.MethodGet, "/api/mcp/tools", "", ""))
		assert.Equal(t, false, body["connected"])
		assert.Equal(t, []any{}, body["tools"])
		assert.Equal(t, "MCP client not connected", body["error"])
	})
}

func dialWS(t *testing.T, srv *httptest.Server, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	return websocket.DefaultDialer.Dial(url, header)
}

func TestWebsocketChat(t *testing.T) {
	s, fc := newTestServer(t, nil)
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn, _, err := dialWS(t, srv, "?userId=dana", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeChatMessage, "message": "find reports"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out struct {
		Type     string        `json:"type"`
		Response chat.Response `json:"response"`
	}
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, TypeChatResponse, out.Type)
	assert.Equal(t, "echo: find reports", out.Response.Content)
	assert.Equal(t, []string{"find reports"}, fc.seen("dana"))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join_chat"}))
	var bad struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, TypeChatError, bad.Type)
	assert.Contains(t, bad.Error, "join_chat")
}

func TestWebsocketRequiresUser(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, resp, err := dialWS(t, srv, "", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := dialWS(t, srv, "", http.Header{"X-User-ID": []string{"erin"}})
	require.NoError(t, err)
	conn.Close()
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
