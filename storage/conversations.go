package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is how many turns a conversation keeps.
const DefaultHistoryLimit = 50

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Backend   string    `json:"backend,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationStore keeps the recent turns of every user in memory. Nothing
// survives a restart.
type ConversationStore struct {
	limit int

	mu    sync.Mutex
	turns map[string][]Turn
}

// NewConversationStore creates a store keeping at most limit turns per user
func NewConversationStore(limit int) *ConversationStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &ConversationStore{
		limit: limit,
		turns: make(map[string][]Turn),
	}
}

// Append adds a turn to the user's conversation, dropping the oldest turns
// past the limit. It fills in the id and timestamp when missing.
func (s *ConversationStore) Append(userID string, turn Turn) Turn {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.turns[userID], turn)
	if over := len(log) - s.limit; over > 0 {
		log = append([]Turn(nil), log[over:]...)
	}
	s.turns[userID] = log

	return turn
}

// History returns a copy of the user's turns, oldest first
func (s *ConversationStore) History(userID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns[userID]))
	copy(out, s.turns[userID])
	return out
}

// Users returns how many users have a conversation
func (s *ConversationStore) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
