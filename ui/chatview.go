// Package ui is the terminal chat client.
package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"gdrivechat/chat"
	"gdrivechat/config"
	"gdrivechat/storage"
)

// Chat is the conversation service behind the window.
type Chat interface {
	ProcessMessage(ctx context.Context, userID, message string) chat.Response
	History(userID string) []storage.Turn
	BackendLabel() string
}

// Searcher finds turns in a user's history.
type Searcher interface {
	Search(userID, query string) []storage.TurnMatch
}

// entry is one rendered turn in the viewport.
type entry struct {
	Role      storage.Role
	Type      string
	Content   string
	Rendered  string
	Timestamp time.Time
}

type ChatView struct {
	ctx      context.Context
	chat     Chat
	searcher Searcher
	userID   string
	keys     config.KeyBindingsConfig
	// status returns extra text for the status line, such as the tool
	// server state.
	status func() string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	entries []entry
	pending int

	width  int
	height int
	ready  bool

	showHelp bool
	notice   string

	prompts promptPicker
	search  historySearch
}

type Options struct {
	Chat     Chat
	Searcher Searcher
	UserID   string
	Keys     config.KeyBindingsConfig
	Status   func() string
}

// responseMsg carries a reply back from the chat service.
type responseMsg struct {
	response chat.Response
	at       time.Time
}

// renderedMsg carries markdown rendered off the update loop.
type renderedMsg struct {
	index    int
	rendered string
}

func NewChatView(ctx context.Context, opts Options) ChatView {
	input := textinput.New()
	input.Placeholder = "Ask about your Drive..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	if opts.Status == nil {
		opts.Status = func() string { return "" }
	}

	a := ChatView{
		ctx:      ctx,
		chat:     opts.Chat,
		searcher: opts.Searcher,
		userID:   opts.UserID,
		keys:     opts.Keys,
		status:   opts.Status,
		viewport: viewport.New(0, 0),
		input:    input,
		spinner:  sp,
		prompts:  newPromptPicker(),
		search:   newHistorySearch(),
	}

	for _, t := range opts.Chat.History(opts.UserID) {
		a.entries = append(a.entries, entry{
			Role:      t.Role,
			Type:      t.Type,
			Content:   t.Content,
			Rendered:  t.Content,
			Timestamp: t.Timestamp,
		})
	}

	return a
}

func (a ChatView) Init() tea.Cmd {
	return textinput.Blink
}

// Run starts the window and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(NewChatView(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
