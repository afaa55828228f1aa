package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gdrivechat/chat"
	"gdrivechat/mcp"
	"gdrivechat/storage"
)

type userKey struct{}

const maxMessageBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireUser rejects requests that carry no user id.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(s.userHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+s.userHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

type healthResponse struct {
	Status         string  `json:"status"`
	MCPState       string  `json:"mcpState"`
	MCPConnected   bool    `json:"mcpConnected"`
	DriveConnected bool    `json:"driveConnected"`
	Backend        string  `json:"backend"`
	Users          int     `json:"users"`
	Uptime         float64 `json:"uptime"`
	Timestamp      string  `json:"timestamp"`
}

func (s *Server) mcpState() mcp.State {
	if s.tools == nil {
		return mcp.StateDisconnected
	}
	return s.tools.State()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.mcpState()
	users := 0
	if s.users != nil {
		users = s.users.Users()
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		MCPState:       state.String(),
		MCPConnected:   state == mcp.StateConnected,
		DriveConnected: s.driveConnected,
		Backend:        s.chat.BackendLabel(),
		Users:          users,
		Uptime:         time.Since(s.started).Seconds(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"prompts": chat.QuickPrompts()})
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if s.mcpState() != mcp.StateConnected {
		writeJSON(w, http.StatusOK, map[string]any{
			"error":     "MCP client not connected",
			"tools":     []toolInfo{},
			"connected": false,
		})
		return
	}

	tools := s.tools.Tools()
	out := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolInfo{Name: t.Name, Description: t.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":     out,
		"connected": true,
		"count":     len(out),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" && s.searcher != nil {
		writeJSON(w, http.StatusOK, map[string]any{"matches": s.searcher.Search(userID, q)})
		return
	}

	history := s.chat.History(userID)
	if history == nil {
		history = []storage.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	resp := s.chat.ProcessMessage(r.Context(), userFrom(r.Context()), req.Message)
	writeJSON(w, http.StatusOK, map[string]any{"response": resp})
}
