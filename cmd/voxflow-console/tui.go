package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	pipeline "github.com/voxflow/voxflow-core/core"
)

type stateMsg pipeline.TurnState

type partialTranscriptMsg string

type transcriptMsg string

type responseDeltaMsg string

type responseMsg string

type responseEndMsg struct{}

type pipelineErrMsg struct{ err error }

type pipelineDoneMsg struct{ err error }

type transcriptLine struct {
	speaker string
	text    string
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	stateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type model struct {
	task *pipeline.Task

	viewport viewport.Model
	spinner  spinner.Model
	ready    bool
	width    int

	state pipeline.TurnState
	lines []transcriptLine

	// in-flight text, shown dimmed until the turn is confirmed
	pendingUser      string
	pendingAssistant string

	err     error
	quiting bool
}

func newModel(task *pipeline.Task) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = stateStyle

	return model{
		task:    task,
		spinner: s,
		state:   pipeline.TurnIdle,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quiting = true
			m.task.End()
			return m, nil
		case "i":
			m.task.Interrupt()
			return m, nil
		}

	case tea.WindowSizeMsg:
		headerHeight := 2
		footerHeight := 2
		m.width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case stateMsg:
		m.state = pipeline.TurnState(msg)
		return m, nil

	case partialTranscriptMsg:
		m.pendingUser = string(msg)
		m.refreshViewport()
		return m, nil

	case transcriptMsg:
		m.pendingUser = ""
		m.lines = append(m.lines, transcriptLine{speaker: "You", text: string(msg)})
		m.refreshViewport()
		return m, nil

	case responseDeltaMsg:
		m.pendingAssistant += string(msg)
		m.refreshViewport()
		return m, nil

	case responseMsg:
		m.pendingAssistant = ""
		m.lines = append(m.lines, transcriptLine{speaker: "Assistant", text: string(msg)})
		m.refreshViewport()
		return m, nil

	case responseEndMsg:
		// an interrupted turn never publishes a response, drop its deltas
		m.pendingAssistant = ""
		m.refreshViewport()
		return m, nil

	case pipelineErrMsg:
		m.err = msg.err
		return m, nil

	case pipelineDoneMsg:
		if msg.err != nil && m.err == nil {
			m.err = msg.err
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m model) renderTranscript() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for _, line := range m.lines {
		style := userStyle
		if line.speaker == "Assistant" {
			style = assistantStyle
		}
		b.WriteString(style.Render(line.speaker+":") + " ")
		b.WriteString(wordwrap.String(line.text, width-2))
		b.WriteString("\n\n")
	}
	if m.pendingUser != "" {
		b.WriteString(userStyle.Render("You:") + " ")
		b.WriteString(pendingStyle.Render(wordwrap.String(m.pendingUser, width-2)))
		b.WriteString("\n\n")
	}
	if m.pendingAssistant != "" {
		b.WriteString(assistantStyle.Render("Assistant:") + " ")
		b.WriteString(pendingStyle.Render(wordwrap.String(m.pendingAssistant, width-2)))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "Starting up..."
	}

	status := string(m.state)
	if m.state == pipeline.TurnProcessing {
		status = m.spinner.View() + status
	}
	header := headerStyle.Render("voxflow console") + "  " + stateStyle.Render(status) + "\n"

	footer := footerStyle.Render("i: interrupt • q: quit")
	if m.quiting {
		footer = footerStyle.Render("shutting down...")
	}
	if m.err != nil {
		footer = errorStyle.Render(fmt.Sprintf("error: %v", m.err)) + "  " + footer
	}

	return header + m.viewport.View() + "\n" + footer
}
