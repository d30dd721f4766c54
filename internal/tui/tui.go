// Package tui provides the terminal chat surface for Manara.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/manara/internal/chat"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/rag"
	"github.com/mwiater/manara/internal/util"
)

// Asker answers one question given the earlier turns of the conversation.
// *rag.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, query string, history []rag.Message) rag.Reply
}

// Options configures the chat surface.
type Options struct {
	// Title is shown in the header.
	Title string
	// HistoryLimit bounds the turns forwarded with each question. Zero keeps all.
	HistoryLimit int
	// Debug shows the passage sources under each answer.
	Debug bool
}

// viewState represents the current screen.
type viewState int

const (
	// viewChat is the conversation with the input box.
	viewChat viewState = iota
	// viewQuickActions lists the canned questions.
	viewQuickActions
)

// turn is one rendered line of the transcript.
type turn struct {
	role    string
	content string
	kind    rag.Kind
	sources []string
}

// answerMsg carries a finished reply back to Update.
type answerMsg struct {
	seq      int
	question string
	reply    rag.Reply
	elapsed  time.Duration
}

// tickMsg refreshes the elapsed timer while a question is in flight.
type tickMsg time.Time

// model is the Bubble Tea model for the chat.
type model struct {
	ctx              context.Context
	asker            Asker
	opts             Options
	history          *chat.History
	transcript       []turn
	state            viewState
	isLoading        bool
	// seq identifies the question in flight; replies carrying another value
	// belong to a cleared or superseded question.
	seq              int
	err              error
	lastKind         rag.Kind
	lastElapsed      time.Duration
	textArea         textarea.Model
	viewport         viewport.Model
	spinner          spinner.Model
	actions          list.Model
	width, height    int
	requestStartTime time.Time
}

// actionItem adapts a chat.QuickAction to the list delegate.
type actionItem struct{ action chat.QuickAction }

// Title returns the list title of the action.
func (i actionItem) Title() string {
	return fmt.Sprintf("%s  %s", strings.ToUpper(i.action.Key), i.action.Label)
}

// Description returns the question the action asks.
func (i actionItem) Description() string { return i.action.Question }

// FilterValue returns the text used for filtering.
func (i actionItem) FilterValue() string { return i.action.Label }

// initialModel creates the model with an empty conversation.
func initialModel(ctx context.Context, asker Asker, opts Options) *model {
	if opts.Title == "" {
		opts.Title = "Manara · ATS Assistant"
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask about admissions, fees, programs or campuses..."
	ta.Focus()
	ta.Prompt = "Ask Anything: "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	items := make([]list.Item, len(chat.QuickActions))
	for i, a := range chat.QuickActions {
		items[i] = actionItem{action: a}
	}
	actions := list.New(items, list.NewDefaultDelegate(), 0, 0)
	actions.Title = "Quick Actions"

	// Letter and space bindings would fire while typing a question.
	vp := viewport.New(100, 5)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		Up:       key.NewBinding(key.WithKeys("up")),
		Down:     key.NewBinding(key.WithKeys("down")),
	}

	return &model{
		ctx:      ctx,
		asker:    asker,
		opts:     opts,
		history:  chat.NewHistory(opts.HistoryLimit),
		state:    viewChat,
		spinner:  s,
		textArea: ta,
		viewport: vp,
		actions:  actions,
	}
}

// askCmd runs one question against the asker off the UI goroutine.
func askCmd(ctx context.Context, asker Asker, seq int, question string, history []rag.Message) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		logging.LogRequest("UI->RAG", "local", "", "ask", map[string]any{"query": question, "history": len(history)})
		reply := asker.Ask(ctx, question, history)
		logging.LogRequest("RAG->UI", "local", "", "ask", map[string]any{"kind": reply.Kind, "passages": len(reply.Passages)})
		return answerMsg{seq: seq, question: question, reply: reply, elapsed: time.Since(start)}
	}
}

// tickCmd creates a command that sends a tickMsg at a regular interval.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the spinner animation.
func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// submit records the question and starts answering it. It returns nil when
// the question is blank or another one is still in flight.
func (m *model) submit(question string) tea.Cmd {
	question = strings.TrimSpace(question)
	if question == "" || m.isLoading {
		return nil
	}
	history := m.history.Messages()
	m.transcript = append(m.transcript, turn{role: rag.RoleUser, content: question})
	m.textArea.Reset()
	m.isLoading = true
	m.seq++
	m.err = nil
	m.requestStartTime = time.Now()
	m.state = viewChat
	m.viewport.GotoBottom()
	return tea.Batch(m.spinner.Tick, askCmd(m.ctx, m.asker, m.seq, question, history), tickCmd())
}

// clear forgets the conversation. An answer still in flight is discarded
// when it arrives.
func (m *model) clear() {
	m.history.Clear()
	m.transcript = nil
	m.lastKind = ""
	m.lastElapsed = 0
	m.err = nil
	m.isLoading = false
	m.seq++
	m.textArea.Reset()
	m.viewport.GotoTop()
}

// Update is the central update function for the Bubble Tea model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.state == viewQuickActions && msg.String() == "esc" {
				m.state = viewChat
				return m, nil
			}
			return m, tea.Quit
		case "ctrl+l":
			m.clear()
			return m, nil
		case "tab":
			if m.state == viewChat {
				m.state = viewQuickActions
			} else {
				m.state = viewChat
			}
			return m, nil
		}
		if action, ok := chat.QuickActionFor(msg.String()); ok {
			return m, m.submit(action.Question)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.actions.SetSize(msg.Width-2, msg.Height-4)
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 4
		footerHeight := 3
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		return m, nil

	case answerMsg:
		if !m.isLoading || msg.seq != m.seq {
			return m, nil
		}
		m.isLoading = false
		m.lastKind = msg.reply.Kind
		m.lastElapsed = msg.elapsed
		if msg.reply.Err != nil {
			logging.Logger().Warn("answer degraded", "kind", msg.reply.Kind, "err", msg.reply.Err)
		}
		m.transcript = append(m.transcript, turn{
			role:    rag.RoleAssistant,
			content: msg.reply.Text,
			kind:    msg.reply.Kind,
			sources: passageSources(msg.reply.Passages),
		})
		m.history.AppendExchange(msg.question, msg.reply.Text)
		m.textArea.Focus()
		m.viewport.GotoBottom()
		return m, nil

	case tickMsg:
		if m.isLoading {
			return m, tickCmd()
		}
		return m, nil
	}

	switch m.state {
	case viewQuickActions:
		m.actions, cmd = m.actions.Update(msg)
		cmds = append(cmds, cmd)
		if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
			if selected, ok := m.actions.SelectedItem().(actionItem); ok {
				cmds = append(cmds, m.submit(selected.action.Question))
			}
		}

	case viewChat:
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

		if !m.isLoading {
			m.textArea, cmd = m.textArea.Update(msg)
			cmds = append(cmds, cmd)
		}

		if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
			cmds = append(cmds, m.submit(m.textArea.Value()))
		}
	}

	if m.isLoading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the application's UI based on the current state of the model.
func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	switch m.state {
	case viewQuickActions:
		return lipgloss.NewStyle().Margin(1, 2).Render(m.actions.View())
	case viewChat:
		return m.chatView()
	default:
		return "Unknown state"
	}
}

// chatView renders the header, the transcript and the input area.
func (m *model) chatView() string {
	var builder strings.Builder

	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	status := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render(m.opts.Title),
		renderKindBadge(m.lastKind),
		renderTurnsBadge(m.history.Len()),
	)
	builder.WriteString(status + "\n")
	builder.WriteString(util.TruncateToWidth(quickActionHelp(), m.width) + "\n\n")

	var historyBuilder strings.Builder
	userStyle := lipgloss.NewStyle().Bold(true)
	assistantStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	sourceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	for _, t := range m.transcript {
		var role string
		if t.role == rag.RoleAssistant {
			role = assistantStyle.Render("Manara: ")
		} else {
			role = userStyle.Render("You: ")
		}
		width := max(10, m.width-lipgloss.Width(role)-2)
		content := util.WrapToWidth(t.content, width)
		historyBuilder.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, role, content) + "\n")
		if m.opts.Debug && len(t.sources) > 0 {
			historyBuilder.WriteString(sourceStyle.Render("  sources: "+strings.Join(t.sources, ", ")) + "\n")
		}
	}

	m.viewport.SetContent(historyBuilder.String())
	builder.WriteString(m.viewport.View())

	if m.isLoading {
		timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
		builder.WriteString("\n" + m.spinner.View() + fmt.Sprintf(" Manara is thinking... %ss", timer))
	} else {
		builder.WriteString("\n" + m.textArea.View())
	}

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		builder.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.lastElapsed > 0 {
		metaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
		builder.WriteString("\n" + metaStyle.Render(fmt.Sprintf("  >>> [Answered in %.1fs]", m.lastElapsed.Seconds())))
	}

	return builder.String()
}

func quickActionHelp() string {
	parts := make([]string, 0, len(chat.QuickActions)+2)
	for _, a := range chat.QuickActions {
		parts = append(parts, fmt.Sprintf("%s %s", strings.ToUpper(a.Key), a.Label))
	}
	parts = append(parts, "tab actions", "ctrl+l clear", "esc quit")
	return " " + strings.Join(parts, " · ")
}

// passageSources lists the distinct sources of passages in rank order.
func passageSources(passages []rag.Passage) []string {
	seen := make(map[string]bool, len(passages))
	var out []string
	for _, p := range passages {
		if p.Source == "" || seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		out = append(out, p.Source)
	}
	return out
}

// Run starts the chat and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, asker Asker, opts Options) error {
	m := initialModel(ctx, asker, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat ui: %w", err)
	}
	return nil
}
