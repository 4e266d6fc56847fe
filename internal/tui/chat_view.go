package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onboardia/onboardia/internal/llm"
	"github.com/onboardia/onboardia/internal/prompts"
)

// Typing any of these ends the chat instead of sending a prompt.
var chatStopWords = map[string]struct{}{
	"stop":    {},
	"exit":    {},
	"quit":    {},
	"silence": {},
}

const chatGoodbye = "Okay, stopping the onboarding flow. Bye!"

var (
	chatUserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	chatAssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	chatBodyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	chatHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type chatReplyMsg struct {
	content string
	err     error
}

type chatFinishedMsg struct{}

// chatView is a free-form conversation with the HR assistant. History is
// kept for the session only; nothing is persisted.
type chatView struct {
	app      *App
	input    textarea.Model
	viewport viewport.Model
	history  []llm.Message
	waiting  bool
	closing  bool
	err      error
	width    int
	height   int
}

func newChatView(app *App) *chatView {
	input := textarea.New()
	input.Placeholder = "Ask Onboardia anything (stop/exit/quit to leave)..."
	input.SetHeight(3)
	input.CharLimit = 4000
	input.Focus()

	vp := viewport.New(80, 16)

	view := &chatView{
		app:      app,
		input:    input,
		viewport: vp,
	}
	view.refreshTranscript()
	return view
}

func (v *chatView) Init() tea.Cmd {
	v.app.statusMsg = "Chatting with Onboardia"
	return textarea.Blink
}

func (v *chatView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = m.Width
		v.height = m.Height
		v.viewport.Width = max(40, m.Width-8)
		v.viewport.Height = max(6, m.Height-14)
		v.input.SetWidth(max(40, m.Width-8))
		v.refreshTranscript()
		return nil
	case chatReplyMsg:
		v.waiting = false
		if m.err != nil {
			v.err = m.err
			v.app.logError("chat completion failed: %v", m.err)
			v.refreshTranscript()
			return nil
		}
		v.err = nil
		v.history = append(v.history, llm.Message{Role: llm.RoleAssistant, Content: m.content})
		v.refreshTranscript()
		return nil
	case tea.KeyMsg:
		switch m.String() {
		case "enter":
			if v.waiting || v.closing {
				return nil
			}
			return v.submit()
		default:
			var cmd tea.Cmd
			v.input, cmd = v.input.Update(msg)
			return cmd
		}
	default:
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return cmd
	}
}

func (v *chatView) submit() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" {
		return nil
	}
	v.input.Reset()
	if _, stop := chatStopWords[strings.ToLower(text)]; stop {
		v.closing = true
		v.history = append(v.history,
			llm.Message{Role: llm.RoleUser, Content: text},
			llm.Message{Role: llm.RoleAssistant, Content: chatGoodbye},
		)
		v.refreshTranscript()
		v.app.logInfo("chat ended")
		return func() tea.Msg { return chatFinishedMsg{} }
	}

	prior := make([]llm.Message, len(v.history))
	copy(prior, v.history)
	v.history = append(v.history, llm.Message{Role: llm.RoleUser, Content: text})
	v.waiting = true
	v.refreshTranscript()

	chat := v.app.clients.LLM
	return func() tea.Msg {
		reply, err := chat.CompleteWithHistory(context.Background(), prompts.ChatSystem, prior, text)
		return chatReplyMsg{content: reply, err: err}
	}
}

func (v *chatView) refreshTranscript() {
	var lines []string
	for _, msg := range v.history {
		label := chatUserStyle.Render("You")
		if msg.Role == llm.RoleAssistant {
			label = chatAssistantStyle.Render("Onboardia")
		}
		lines = append(lines, label, chatBodyStyle.Render(msg.Content), "")
	}
	if v.waiting {
		lines = append(lines, chatHintStyle.Render("Onboardia is thinking..."))
	}
	if v.err != nil {
		lines = append(lines, chatHintStyle.Render(fmt.Sprintf("⚠ %v", v.err)))
	}
	if len(lines) == 0 {
		lines = append(lines, chatHintStyle.Render("Say hi! Onboardia can answer HR and onboarding questions."))
	}
	v.viewport.SetContent(strings.Join(lines, "\n"))
	v.viewport.GotoBottom()
}

func (v *chatView) View() string {
	hint := chatHintStyle.Render("enter=send    esc=back to menu")
	return lipgloss.JoinVertical(lipgloss.Left,
		v.viewport.View(),
		"",
		v.input.View(),
		hint,
	)
}
