package ui

import (
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"gdrivechat/chat"
	"gdrivechat/storage"
)

var mdLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)

// preprocessLinks turns [text](url) into "text (url)" so terminals can
// detect the URL themselves.
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$1 ($2)")
}

// renderMarkdownText renders content for a terminal of the given width.
// Autolinking is off so plain URLs stay plain.
func renderMarkdownText(content string, width int) string {
	if width < 20 {
		width = 20
	}
	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width-4, 0)
	doc := p.Parse([]byte(preprocessLinks(content)))
	return strings.TrimRight(string(gomarkdown.Render(doc, r)), "\n")
}

func renderMarkdown(index int, content string, width int) tea.Cmd {
	return func() tea.Msg {
		return renderedMsg{index: index, rendered: renderMarkdownText(content, width)}
	}
}

// renderAll re-renders every assistant entry, used after a resize.
func (a ChatView) renderAll() tea.Cmd {
	var cmds []tea.Cmd
	for i, e := range a.entries {
		if e.Role == storage.RoleAssistant {
			cmds = append(cmds, renderMarkdown(i, e.Content, a.width))
		}
	}
	return tea.Batch(cmds...)
}

func formatUserMessage(timestamp, role, content string) string {
	bar := UserStyle.Render("┃")

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", bar, timestamp, role)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%s %s\n", bar, line)
	}
	b.WriteString("\n")
	return b.String()
}

func (a *ChatView) refresh(gotoBottom bool) {
	if len(a.entries) == 0 && a.pending == 0 {
		a.viewport.SetContent(DimStyle.Render("No messages yet. Try one of the quick prompts (" +
			a.keys.DisplayActionKey("quick_prompts") + ")."))
		return
	}

	var b strings.Builder
	for _, e := range a.entries {
		timestamp := DimStyle.Render(e.Timestamp.Format("[15:04]"))

		if e.Role == storage.RoleUser {
			b.WriteString(formatUserMessage(timestamp, UserStyle.Render("You"), e.Rendered))
			continue
		}

		role := AssistantStyle.Render("Assistant")
		if e.Type == chat.TypeError || e.Type == chat.TypeFallback {
			role = ErrorStyle.Render("Assistant")
		}
		fmt.Fprintf(&b, "%s %s\n%s\n\n", timestamp, role, e.Rendered)
	}

	if a.pending > 0 {
		fmt.Fprintf(&b, "%s %s\n", a.spinner.View(), DimStyle.Render("Working on it..."))
	}

	a.viewport.SetContent(b.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a ChatView) statusText() string {
	parts := []string{"backend: " + a.chat.BackendLabel()}
	if extra := a.status(); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " | ")
}

// statusLine fits the notice or the key hints into width cells.
func (a ChatView) statusLine() string {
	line := a.notice
	if line == "" {
		line = fmt.Sprintf("%s Quit  %s Prompts  %s Search  %s Copy  %s Help",
			a.keys.DisplayActionKey("quit"),
			a.keys.DisplayActionKey("quick_prompts"),
			a.keys.DisplayActionKey("search_history"),
			a.keys.DisplayActionKey("yank_last_response"),
			a.keys.DisplayActionKey("help"),
		)
	}
	if a.width > 0 && runewidth.StringWidth(line) > a.width {
		line = runewidth.Truncate(line, a.width, "…")
	}
	return StatusStyle.Render(line)
}

func (a ChatView) View() string {
	if !a.ready {
		return "Loading gdrivechat..."
	}

	switch {
	case a.showHelp:
		return a.renderHelpModal(a.width, a.height)
	case a.prompts.active:
		return a.renderPromptPicker()
	case a.search.active:
		return a.renderHistorySearch()
	}

	label := a.chat.BackendLabel()
	title := AssistantStyle.Render("gdrivechat") +
		TitleStyle.Render(" - Google Drive") +
		DimStyle.Render(" | ") +
		backendStyle(label).Render(label)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.viewport.View(),
		a.input.View(),
		a.statusLine(),
	)
}

// placeModal centers a modal box on screen.
func placeModal(content string, boxWidth, width, height int) string {
	if width > 0 && boxWidth > width-4 {
		boxWidth = width - 4
	}
	box := modalStyle.Width(boxWidth).Render(content)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
