package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/hybridrag/internal/app"
	"github.com/efebarandurmaz/hybridrag/internal/domain"
)

const (
	Banner              = "Hybrid RAG System: ask about your research papers"
	ExitHint            = "Type 'exit' or 'quit' to stop."
	EmptyQuestionNotice = "Please enter a valid question."
	FetchingNotice      = "Fetching relevant context..."
	Farewell            = "Goodbye!"
)

// Asker answers one question against the indexed corpus.
type Asker interface {
	Answer(ctx context.Context, question string) (app.Answer, error)
}

// IsExit reports whether the input ends the session.
func IsExit(input string) bool {
	input = strings.TrimSpace(input)
	return strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit")
}

type exchange struct {
	question string
	answer   app.Answer
	err      error
}

type answerMsg exchange

type chatKeys struct {
	Submit     key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Quit       key.Binding
}

func newChatKeys() chatKeys {
	return chatKeys{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ChatModel is the interactive question loop.
type ChatModel struct {
	ctx    context.Context
	asker  Asker
	model  string
	styles *Styles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     chatKeys

	history  []exchange
	notice   string
	busy     bool
	width    int
	height   int
	quitting bool
}

// NewChatModel creates a chat bound to asker. model is shown in the header.
func NewChatModel(ctx context.Context, asker Asker, model string) ChatModel {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Prompt = "Ask your question: "
	ti.PromptStyle = styles.Prompt
	ti.Placeholder = "What does the corpus say about..."
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner))

	m := ChatModel{
		ctx:      ctx,
		asker:    asker,
		model:    model,
		styles:   styles,
		input:    ti,
		viewport: viewport.New(80, 16),
		spinner:  sp,
		help:     help.New(),
		keys:     newChatKeys(),
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

func (m ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-7)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerMsg:
		m.busy = false
		m.notice = ""
		m.history = append(m.history, exchange(msg))
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	q := strings.TrimSpace(m.input.Value())
	if IsExit(q) {
		m.quitting = true
		return m, tea.Quit
	}
	m.input.SetValue("")
	if q == "" {
		m.notice = EmptyQuestionNotice
		return m, nil
	}
	m.busy = true
	m.notice = FetchingNotice
	return m, tea.Batch(m.spinner.Tick, m.ask(q))
}

func (m ChatModel) ask(q string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		ans, err := asker.Answer(ctx, q)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

func (m *ChatModel) refresh() {
	if len(m.history) == 0 {
		m.viewport.SetContent(m.styles.Help.Render(ExitHint))
		return
	}
	parts := make([]string, len(m.history))
	for i, ex := range m.history {
		parts[i] = renderExchange(m.styles, ex, m.viewport.Width)
	}
	m.viewport.SetContent(strings.Join(parts, "\n\n"))
}

func (m ChatModel) View() string {
	if m.quitting {
		return m.styles.Subtitle.Render(Farewell) + "\n"
	}

	header := m.styles.Title.Render(Banner)
	if m.model != "" {
		header += "  " + m.styles.Subtitle.Render("model: "+m.model)
	}

	status := ""
	switch {
	case m.busy:
		status = m.spinner.View() + " " + m.styles.Progress.Render(m.notice)
	case m.notice != "":
		status = m.styles.Notice.Render(m.notice)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.Submit, m.keys.ScrollUp, m.keys.ScrollDown, m.keys.Quit})

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.input.View(),
		m.styles.Help.Render(helpView),
	)
}

func renderExchange(s *Styles, ex exchange, width int) string {
	var b strings.Builder
	b.WriteString(s.Question.Render("Q: " + ex.question))
	b.WriteString("\n")
	if ex.err != nil {
		b.WriteString(s.Error.Render("Query failed: " + ex.err.Error()))
		return b.String()
	}
	b.WriteString(s.AnswerLabel.Render("Answer:"))
	b.WriteString("\n")
	answerStyle := s.Answer
	if width > 0 {
		answerStyle = answerStyle.Width(width)
	}
	b.WriteString(answerStyle.Render(ex.answer.Text))
	b.WriteString("\n")
	b.WriteString(s.Context.Render(describeContext(ex.answer.Bundle)))
	return b.String()
}

func describeContext(b domain.Bundle) string {
	if b.IsSentinel() || len(b.Passages) == 0 {
		return "context: " + domain.NoContextText
	}
	var vec, gr int
	for _, p := range b.Passages {
		switch p.Source {
		case domain.SourceVector:
			vec++
		case domain.SourceGraph:
			gr++
		}
	}
	out := fmt.Sprintf("context: %d passages (vector %d, graph %d)", len(b.Passages), vec, gr)
	for _, src := range []string{domain.SourceVector, domain.SourceGraph} {
		if err, ok := b.SourceErrors[src]; ok {
			out += fmt.Sprintf("; %s unavailable: %v", src, err)
		}
	}
	return out
}
