package chat

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// QuickPrompt is a canned message offered to the user.
type QuickPrompt struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Prompt      string `json:"prompt"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

var quickPrompts = []QuickPrompt{
	{
		ID:          "analyze-june-reports",
		Title:       "Analyze June Reports & Preview Content",
		Prompt:      "Analyze the contents of the documents in the June folder and show the first 100 characters of each",
		Icon:        "fas fa-file-magnifying-glass",
		Description: "Analyze content of June reports",
	},
	{
		ID:          "list-recent",
		Title:       "Recent Files",
		Prompt:      "List my 10 most recent files",
		Icon:        "fas fa-clock",
		Description: "List recent files",
	},
	{
		ID:          "shared-files",
		Title:       "Shared Files",
		Prompt:      "Show me files shared with me",
		Icon:        "fas fa-share-alt",
		Description: "View shared files",
	},
	{
		ID:          "storage-usage",
		Title:       "Storage Info",
		Prompt:      "Analyze my Google Drive storage usage",
		Icon:        "fas fa-chart-pie",
		Description: "Storage analysis",
	},
	{
		ID:          "search-files",
		Title:       "Search Files",
		Prompt:      "Search for files by name",
		Icon:        "fas fa-search",
		Description: "Find specific files",
	},
	{
		ID:          "root-folder",
		Title:       "My Drive",
		Prompt:      "List files in my main Drive folder",
		Icon:        "fas fa-folder",
		Description: "Browse main folder",
	},
}

// QuickPrompts returns a copy of the built-in prompts.
func QuickPrompts() []QuickPrompt {
	return append([]QuickPrompt(nil), quickPrompts...)
}

// FindQuickPrompt looks a prompt up by exact id, then by fuzzy match on id
// and title.
func FindQuickPrompt(query string) (QuickPrompt, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QuickPrompt{}, false
	}

	for _, p := range quickPrompts {
		if strings.EqualFold(p.ID, query) {
			return p, true
		}
	}

	targets := make([]string, len(quickPrompts))
	for i, p := range quickPrompts {
		targets[i] = p.ID + " " + p.Title
	}

	matches := fuzzy.Find(query, targets)
	if len(matches) == 0 {
		return QuickPrompt{}, false
	}
	return quickPrompts[matches[0].Index], true
}
