package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gdrivechat/chat"
)

const (
	TypeChatMessage  = "chat_message"
	TypeChatResponse = "chat_response"
	TypeChatError    = "chat_error"

	writeWait = 10 * time.Second
)

type inbound struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type outbound struct {
	Type      string         `json:"type"`
	Response  *chat.Response `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// socket serializes writes to one connection.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *socket) send(msg outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// wsUser takes the user id from the configured header, or from the userId
// query parameter since browsers cannot set headers on a websocket handshake.
func (s *Server) wsUser(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(s.userHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	userID := s.wsUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+s.userHeader+" header")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	s.track(conn)
	defer s.untrack(conn)

	s.logger.Info("client connected", "user", userID)

	c := &socket{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("client disconnected", "user", userID)
			} else {
				s.logger.Debug("websocket read ended", "user", userID, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.send(outbound{Type: TypeChatError, Error: "invalid message", Timestamp: time.Now()})
			continue
		}

		switch {
		case msg.Type != TypeChatMessage:
			_ = c.send(outbound{Type: TypeChatError, Error: "unknown message type: " + msg.Type, Timestamp: time.Now()})
			continue
		case strings.TrimSpace(msg.Message) == "":
			_ = c.send(outbound{Type: TypeChatError, Error: "Message is required", Timestamp: time.Now()})
			continue
		}

		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			resp := s.chat.ProcessMessage(ctx, userID, text)
			if err := c.send(outbound{Type: TypeChatResponse, Response: &resp, Timestamp: time.Now()}); err != nil {
				s.logger.Debug("websocket write failed", "user", userID, "error", err)
			}
		}(msg.Message)
	}
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.sockets[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.sockets, conn)
	s.mu.Unlock()
	conn.Close()
}

// closeSockets ends every open websocket; http.Server.Shutdown does not
// track hijacked connections.
func (s *Server) closeSockets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.sockets {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
