package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"gdrivechat/chat"
	"gdrivechat/storage"
)

// Reserve space for title (1 line), separator (1 line), input (1 line) and
// status bar (1 line).
const chromeHeight = 4

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

func (a ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = a.width
		a.viewport.Height = max(a.height-chromeHeight, 1)
		a.input.Width = max(a.width-4, 10)
		a.ready = true
		a.refresh(true)
		return a, a.renderAll()

	case responseMsg:
		a.pending--
		idx := len(a.entries)
		a.entries = append(a.entries, entry{
			Role:      storage.RoleAssistant,
			Type:      msg.response.Type,
			Content:   msg.response.Content,
			Rendered:  msg.response.Content,
			Timestamp: msg.at,
		})
		a.refresh(true)
		return a, renderMarkdown(idx, msg.response.Content, a.width)

	case renderedMsg:
		if msg.index < len(a.entries) {
			a.entries[msg.index].Rendered = msg.rendered
			a.refresh(a.viewport.AtBottom())
		}
		return a, nil

	case spinner.TickMsg:
		if a.pending == 0 {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.refresh(false)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a ChatView) is(msg tea.KeyMsg, action string) bool {
	return msg.String() == a.keys.GetActionKey(action)
}

func (a ChatView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	switch {
	case a.showHelp:
		if msg.Type == tea.KeyEsc || a.is(msg, "help") {
			a.showHelp = false
		}
		return a, nil
	case a.prompts.active:
		return a.handlePromptKey(msg)
	case a.search.active:
		return a.handleSearchKey(msg)
	}

	a.notice = ""

	switch {
	case a.is(msg, "quit"):
		return a, tea.Quit
	case a.is(msg, "help"):
		a.showHelp = true
		return a, nil
	case a.is(msg, "quick_prompts"):
		a.prompts.open()
		return a, nil
	case a.is(msg, "search_history"):
		a.search.open()
		return a, nil
	case a.is(msg, "backend_status"):
		a.notice = a.statusText()
		return a, nil
	case a.is(msg, "send"):
		return a.send(a.input.Value())
	case a.is(msg, "clear_input"):
		a.input.SetValue("")
		return a, nil
	case a.is(msg, "yank_last_response"):
		a.notice = a.yankLastResponse()
		return a, nil
	case a.is(msg, "scroll_down"):
		a.viewport.LineDown(1)
		return a, nil
	case a.is(msg, "scroll_up"):
		a.viewport.LineUp(1)
		return a, nil
	case a.is(msg, "half_page_down"):
		a.viewport.HalfPageDown()
		return a, nil
	case a.is(msg, "half_page_up"):
		a.viewport.HalfPageUp()
		return a, nil
	case a.is(msg, "page_down"):
		a.viewport.PageDown()
		return a, nil
	case a.is(msg, "page_up"):
		a.viewport.PageUp()
		return a, nil
	case a.is(msg, "scroll_to_top"):
		a.viewport.GotoTop()
		return a, nil
	case a.is(msg, "scroll_to_bottom"):
		a.viewport.GotoBottom()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// send appends the user turn and asks the chat service for a reply off the
// update loop.
func (a ChatView) send(text string) (tea.Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	if text == "" {
		return a, nil
	}

	a.input.SetValue("")
	a.entries = append(a.entries, entry{
		Role:      storage.RoleUser,
		Type:      chat.TypeText,
		Content:   text,
		Rendered:  text,
		Timestamp: time.Now(),
	})
	a.pending++
	a.refresh(true)

	ctx, svc, user := a.ctx, a.chat, a.userID
	ask := func() tea.Msg {
		resp := svc.ProcessMessage(ctx, user, text)
		return responseMsg{response: resp, at: time.Now()}
	}

	if a.pending == 1 {
		return a, tea.Batch(ask, a.spinner.Tick)
	}
	return a, ask
}

func (a ChatView) yankLastResponse() string {
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i].Role != storage.RoleAssistant {
			continue
		}
		if err := writeClipboard(a.entries[i].Content); err != nil {
			return fmt.Sprintf("Copy failed: %v", err)
		}
		return "Copied last response"
	}
	return "Nothing to copy yet"
}
