package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"gdrivechat/chat"
	"gdrivechat/storage"
)

type promptPicker struct {
	active   bool
	filter   textinput.Model
	all      []chat.QuickPrompt
	filtered []chat.QuickPrompt
	selected int
}

func newPromptPicker() promptPicker {
	filter := textinput.New()
	filter.Prompt = "Filter: "
	all := chat.QuickPrompts()
	return promptPicker{filter: filter, all: all, filtered: all}
}

func (p *promptPicker) open() {
	p.active = true
	p.selected = 0
	p.filter.SetValue("")
	p.filter.Focus()
	p.filtered = p.all
}

func (p *promptPicker) close() {
	p.active = false
	p.filter.Blur()
}

func (p *promptPicker) applyFilter() {
	value := p.filter.Value()
	if value == "" {
		p.filtered = p.all
	} else {
		targets := make([]string, len(p.all))
		for i, qp := range p.all {
			targets[i] = qp.Title + " " + qp.Description
		}

		matches := fuzzy.Find(value, targets)
		p.filtered = make([]chat.QuickPrompt, len(matches))
		for i, match := range matches {
			p.filtered[i] = p.all[match.Index]
		}
	}

	if p.selected >= len(p.filtered) {
		p.selected = max(len(p.filtered)-1, 0)
	}
}

func (a ChatView) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.prompts.close()
		return a, nil
	case tea.KeyUp:
		if a.prompts.selected > 0 {
			a.prompts.selected--
		}
		return a, nil
	case tea.KeyDown:
		if a.prompts.selected < len(a.prompts.filtered)-1 {
			a.prompts.selected++
		}
		return a, nil
	case tea.KeyEnter:
		if len(a.prompts.filtered) == 0 {
			return a, nil
		}
		chosen := a.prompts.filtered[a.prompts.selected]
		a.prompts.close()
		return a.send(chosen.Prompt)
	}

	var cmd tea.Cmd
	a.prompts.filter, cmd = a.prompts.filter.Update(msg)
	a.prompts.applyFilter()
	return a, cmd
}

func (a ChatView) renderPromptPicker() string {
	lines := []string{
		TitleStyle.Render("Quick prompts"),
		"",
		a.prompts.filter.View(),
		"",
	}

	if len(a.prompts.filtered) == 0 {
		lines = append(lines, DimStyle.Render("No prompts match"))
	}
	for i, qp := range a.prompts.filtered {
		line := fmt.Sprintf("  %-28s %s", qp.Title, DimStyle.Render(qp.Description))
		if i == a.prompts.selected {
			line = SelectedStyle.Render("▶ "+qp.Title) + "  " + DimStyle.Render(qp.Prompt)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", FormatFooter("↑/↓", "Navigate", "Enter", "Send", "Esc", "Close"))
	return placeModal(lipgloss.JoinVertical(lipgloss.Left, lines...), 80, a.width, a.height)
}

type historySearch struct {
	active   bool
	input    textinput.Model
	results  []storage.TurnMatch
	selected int
}

func newHistorySearch() historySearch {
	input := textinput.New()
	input.Prompt = "Search: "
	return historySearch{input: input}
}

func (h *historySearch) open() {
	h.active = true
	h.selected = 0
	h.results = nil
	h.input.SetValue("")
	h.input.Focus()
}

func (h *historySearch) close() {
	h.active = false
	h.input.Blur()
}

func (a ChatView) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.search.close()
		return a, nil
	case tea.KeyUp:
		if a.search.selected > 0 {
			a.search.selected--
		}
		return a, nil
	case tea.KeyDown:
		if a.search.selected < len(a.search.results)-1 {
			a.search.selected++
		}
		return a, nil
	case tea.KeyEnter:
		if len(a.search.results) == 0 {
			return a, nil
		}
		match := a.search.results[a.search.selected]
		a.search.close()
		// Load the matched turn into the input so it can be asked again.
		if history := a.chat.History(a.userID); match.Index < len(history) {
			a.input.SetValue(history[match.Index].Content)
			a.input.CursorEnd()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.search.input, cmd = a.search.input.Update(msg)
	if a.searcher != nil {
		a.search.results = a.searcher.Search(a.userID, a.search.input.Value())
	}
	if a.search.selected >= len(a.search.results) {
		a.search.selected = max(len(a.search.results)-1, 0)
	}
	return a, cmd
}

func (a ChatView) renderHistorySearch() string {
	lines := []string{
		TitleStyle.Render("Search conversation"),
		"",
		a.search.input.View(),
		"",
	}

	switch {
	case a.searcher == nil:
		lines = append(lines, DimStyle.Render("Search is not available"))
	case strings.TrimSpace(a.search.input.Value()) == "":
		lines = append(lines, DimStyle.Render("Type to search your messages and replies"))
	case len(a.search.results) == 0:
		lines = append(lines, DimStyle.Render("No matches"))
	}

	for i, m := range a.search.results {
		who := "You"
		if m.Role == storage.RoleAssistant {
			who = "Assistant"
		}
		line := fmt.Sprintf("%s %-9s %s", m.Timestamp.Format("[15:04]"), who, m.Preview)
		if i == a.search.selected {
			line = SelectedStyle.Render(line)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", FormatFooter("↑/↓", "Navigate", "Enter", "Reuse", "Esc", "Close"))
	return placeModal(lipgloss.JoinVertical(lipgloss.Left, lines...), 90, a.width, a.height)
}
