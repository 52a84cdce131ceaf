// Package tui is the interactive chat surface: a scrolling transcript with
// streamed answers and a mode toggle between document Q&A and plain chat.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docsense/internal/domain"
	"docsense/internal/ingest"
	"docsense/internal/llm"
	"docsense/internal/service"
	"docsense/internal/session"
)

// AskPort is the TUI-facing subset of the question engine.
type AskPort interface {
	Ask(ctx context.Context, sess *session.Session, mode session.Mode, query string) (*service.Answer, error)
}

// ReingestPort rebuilds the index when the watched corpus changes.
type ReingestPort interface {
	Ingest(ctx context.Context, sess *session.Session, patterns []string) (*ingest.Result, error)
}

type entry struct {
	role    domain.Role
	text    string
	sources []string
	mode    session.Mode
}

type answerMsg struct {
	answer *service.Answer
}

type deltaMsg struct {
	content string
	err     error
	closed  bool
}

type askFailedMsg struct{ err error }

type corpusChangedMsg struct{}

type reingestDoneMsg struct {
	res *ingest.Result
	err error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	engine AskPort
	sess   *session.Session
	mode   session.Mode

	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	partial  string
	deltas   <-chan domain.Delta
	current  *service.Answer

	ingestor ReingestPort
	inputs   []string
	changes  <-chan struct{}

	status          string
	streaming       bool
	reingesting     bool
	pendingReingest bool
	ready           bool
}

// New creates the chat model. The session carries both conversation
// histories and the ingestion state.
func New(engine AskPort, sess *session.Session, status string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		engine:   engine,
		sess:     sess,
		mode:     session.ModeDocument,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   status,
	}
}

// WithWatcher wires a corpus-change channel into the model. Change events
// are handled on the update loop, so a rebuild never runs while an answer
// is streaming: the histories, the embedder vocabulary and the index have
// exactly one writer at a time.
func (m Model) WithWatcher(ingestor ReingestPort, inputs []string, changes <-chan struct{}) Model {
	m.ingestor = ingestor
	m.inputs = inputs
	m.changes = changes
	return m
}

func (m Model) Init() tea.Cmd {
	if m.changes != nil {
		return tea.Batch(textinput.Blink, waitForChange(m.changes))
	}
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		reserved := 2 + 3 + 1 // header, input box, status
		vh := msg.Height - reserved - fh
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = vh
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if !m.streaming {
				m.mode = m.toggleMode()
				m.status = fmt.Sprintf("Switched to %s mode", m.mode)
			}
			return m, nil
		case "enter":
			if m.streaming || m.reingesting {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.entries = append(m.entries, entry{role: domain.RoleUser, text: q, mode: m.mode})
			m.streaming = true
			m.status = "Thinking..."
			m.refresh()
			return m, m.ask(q)
		}

	case answerMsg:
		m.current = msg.answer
		m.deltas = msg.answer.Deltas
		m.partial = ""
		m.status = fmt.Sprintf("Answering (%s, %s)", msg.answer.Intent, msg.answer.Detail)
		return m, readDelta(m.deltas)

	case deltaMsg:
		if msg.closed {
			m.finishAnswer("")
			return m, m.maybeReingest()
		}
		if msg.err != nil {
			m.finishAnswer(llm.Remediation(msg.err))
			return m, m.maybeReingest()
		}
		m.partial += msg.content
		m.refresh()
		return m, readDelta(m.deltas)

	case askFailedMsg:
		m.streaming = false
		m.status = llm.Remediation(msg.err)
		return m, m.maybeReingest()

	case corpusChangedMsg:
		if m.streaming || m.reingesting {
			m.pendingReingest = true
			return m, nil
		}
		m.reingesting = true
		m.status = "Corpus changed, re-indexing..."
		return m, m.reingest()

	case reingestDoneMsg:
		m.reingesting = false
		switch {
		case msg.err != nil:
			m.status = "Re-index failed: " + msg.err.Error()
		case msg.res.Skipped:
			m.status = "Corpus unchanged"
		default:
			m.status = fmt.Sprintf("Re-indexed %d files into %d chunks", msg.res.Documents, msg.res.Chunks)
		}
		if cmd := m.maybeReingest(); cmd != nil {
			return m, cmd
		}
		return m, waitForChange(m.changes)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	mode := modeStyle.Render(strings.ToUpper(m.mode.String()))
	header := headerStyle.Render("DocSense") + " " + mode + dimStyle.Render("  tab: switch mode  ctrl+c: quit")
	transcript := transcriptStyle.Width(m.viewport.Width).Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) toggleMode() session.Mode {
	if m.mode == session.ModeDocument {
		return session.ModeChat
	}
	return session.ModeDocument
}

func (m *Model) ask(query string) tea.Cmd {
	engine, sess, mode := m.engine, m.sess, m.mode
	return func() tea.Msg {
		a, err := engine.Ask(context.Background(), sess, mode, query)
		if err != nil {
			return askFailedMsg{err: err}
		}
		return answerMsg{answer: a}
	}
}

// maybeReingest starts a rebuild that was deferred because an answer was
// still streaming when the corpus changed.
func (m *Model) maybeReingest() tea.Cmd {
	if !m.pendingReingest || m.reingesting {
		return nil
	}
	m.pendingReingest = false
	m.reingesting = true
	m.status = "Corpus changed, re-indexing..."
	return m.reingest()
}

func (m *Model) reingest() tea.Cmd {
	ingestor, sess, inputs := m.ingestor, m.sess, m.inputs
	return func() tea.Msg {
		res, err := ingestor.Ingest(context.Background(), sess, inputs)
		return reingestDoneMsg{res: res, err: err}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return corpusChangedMsg{}
	}
}

func readDelta(ch <-chan domain.Delta) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return deltaMsg{closed: true}
		}
		return deltaMsg{content: d.Content, err: d.Err}
	}
}

// finishAnswer commits the streamed text to the transcript. On failure the
// partial text is kept and the remediation note is shown in the status bar.
func (m *Model) finishAnswer(note string) {
	text := m.partial
	if text == "" && note != "" {
		text = note
	}
	e := entry{role: domain.RoleAssistant, text: text, mode: m.mode}
	if m.current != nil {
		e.sources = m.current.Sources
	}
	m.entries = append(m.entries, e)
	m.partial = ""
	m.deltas = nil
	m.current = nil
	m.streaming = false
	if note != "" {
		m.status = note
	} else {
		m.status = "Ready"
	}
	m.refresh()
	m.viewport.GotoBottom()
}

func (m *Model) refresh() {
	var sb strings.Builder
	for _, e := range m.entries {
		sb.WriteString(m.renderEntry(e))
		sb.WriteString("\n\n")
	}
	if m.streaming && m.partial != "" {
		sb.WriteString(assistantLabel.Render("docsense") + "\n" + m.partial)
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderEntry(e entry) string {
	label := userLabel.Render("you")
	if e.role == domain.RoleAssistant {
		label = assistantLabel.Render("docsense")
	}
	out := label + dimStyle.Render(" ["+e.mode.String()+"]") + "\n" + e.text
	if len(e.sources) > 0 {
		out += "\n" + dimStyle.Render("sources: "+strings.Join(e.sources, ", "))
	}
	return out
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	modeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userLabel       = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	assistantLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)
