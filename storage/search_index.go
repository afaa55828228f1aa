package storage

import (
	"strings"
	"time"
	"unicode/utf8"
)

type TurnMatch struct {
	TurnID    string    `json:"turnId"`
	Index     int       `json:"index"`
	Role      Role      `json:"role"`
	Preview   string    `json:"preview"`
	Timestamp time.Time `json:"timestamp"`
}

type SearchIndex struct {
	store *ConversationStore
}

func NewSearchIndex(store *ConversationStore) *SearchIndex {
	return &SearchIndex{store: store}
}

// Search finds the user's turns containing query, newest first.
func (si *SearchIndex) Search(userID, query string) []TurnMatch {
	matches := []TurnMatch{}
	if strings.TrimSpace(query) == "" {
		return matches
	}

	queryLower := strings.ToLower(query)
	turns := si.store.History(userID)

	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if !strings.Contains(strings.ToLower(t.Content), queryLower) {
			continue
		}

		preview := t.Content
		if utf8.RuneCountInString(preview) > 100 {
			preview = string([]rune(preview)[:100]) + "..."
		}

		matches = append(matches, TurnMatch{
			TurnID:    t.ID,
			Index:     i,
			Role:      t.Role,
			Preview:   preview,
			Timestamp: t.Timestamp,
		})
	}

	return matches
}
