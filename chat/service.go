// Package chat turns free-text messages into Drive operations and formats
// the replies.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gdrivechat/backend"
	"gdrivechat/drive"
	"gdrivechat/storage"
)

// Backend is the storage the handlers run against.
type Backend interface {
	drive.Backend
	// Available reports whether any backend can serve requests.
	Available() bool
	// Label names the backend serving requests right now.
	Label() string
}

// Store keeps conversation turns per user.
type Store interface {
	Append(userID string, turn storage.Turn) storage.Turn
	History(userID string) []storage.Turn
}

type Service struct {
	backend Backend
	store   Store
	logger  *slog.Logger
}

// NewService builds a chat service. A nil backend behaves as one that has
// nothing to serve from.
func NewService(b Backend, store Store, logger *slog.Logger) *Service {
	if b == nil {
		b = backend.New(nil, nil, backend.WithLogger(logger))
	}
	if store == nil {
		store = storage.NewConversationStore(storage.DefaultHistoryLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: b,
		store:   store,
		logger:  logger.With("component", "chat"),
	}
}

// ProcessMessage routes one message, records both sides of the exchange and
// returns the reply. Failures are reported in the reply, never as an error.
func (s *Service) ProcessMessage(ctx context.Context, userID, message string) Response {
	s.store.Append(userID, storage.Turn{
		Role:    storage.RoleUser,
		Content: message,
		Type:    TypeText,
	})

	r := match(message)
	resp := s.run(ctx, r, message)

	s.store.Append(userID, storage.Turn{
		Role:    storage.RoleAssistant,
		Content: resp.Content,
		Type:    resp.Type,
		Data:    resp.Data,
		Backend: s.backend.Label(),
	})

	return resp
}

func (s *Service) run(ctx context.Context, r route, message string) (resp Response) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("handler panicked", "intent", r.name, "panic", p)
			resp = errorResponse(fmt.Errorf("unexpected failure in %s: %v", r.name, p))
		}
	}()

	resp, err := r.handle(s, ctx, message)
	if err != nil {
		s.logger.Warn("handler failed", "intent", r.name, "error", err)
		resp = errorResponse(err)
	}

	s.logger.Info("message handled",
		"intent", r.name,
		"type", resp.Type,
		"backend", s.backend.Label(),
		"duration", time.Since(start),
	)
	return resp
}

func errorResponse(err error) Response {
	return Response{
		Content: fmt.Sprintf("I encountered an error: %s\n\n"+
			"💡 **Alternative:** Open Google Drive in your browser and try the same thing there.", err),
		Type: TypeError,
	}
}

// History returns the user's conversation, oldest first.
func (s *Service) History(userID string) []storage.Turn {
	return s.store.History(userID)
}

// BackendLabel names the backend serving requests.
func (s *Service) BackendLabel() string {
	return s.backend.Label()
}
