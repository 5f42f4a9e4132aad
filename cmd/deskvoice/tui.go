package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	voice "github.com/nimbusdesk/voice-core/core"
	"github.com/nimbusdesk/voice-core/core/events"
	"github.com/nimbusdesk/voice-core/core/live"
)

type pipelineEventMsg struct {
	event events.Event
}

type inputLevelMsg float64

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	badgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	badgeOnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	meterStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const meterWidth = 24

type model struct {
	orchestrator *voice.Orchestrator
	session      *live.Session

	viewport viewport.Model
	input    textinput.Model

	state      voice.State
	level      float64
	liveStatus string
	notice     string

	width  int
	height int
	ready  bool
}

func newModel(orchestrator *voice.Orchestrator, session *live.Session) model {
	input := textinput.New()
	input.Placeholder = "Type a message, or ctrl+t to talk"
	input.Focus()

	liveStatus := string(live.StatusDisconnected)
	if session == nil {
		liveStatus = "unavailable"
	}

	return model{
		orchestrator: orchestrator,
		session:      session,
		input:        input,
		state:        orchestrator.State(),
		liveStatus:   liveStatus,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		viewportHeight := msg.Height - 5
		if viewportHeight < 3 {
			viewportHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.orchestrator.Close()
			if m.session != nil {
				m.session.Disconnect()
			}
			return m, tea.Quit
		case "ctrl+t":
			m.toggleTalk()
			return m, nil
		case "ctrl+f":
			enabled := m.orchestrator.ToggleHandsFree()
			m.notice = "hands-free off"
			if enabled {
				m.notice = "hands-free on"
			}
			return m, nil
		case "ctrl+l":
			m.toggleLive()
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.orchestrator.SendPrompt(context.Background(), text)
				m.input.Reset()
			}
			return m, nil
		}

	case pipelineEventMsg:
		m.applyEvent(msg.event)
		return m, nil

	case inputLevelMsg:
		m.level = float64(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.meterView())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+t talk · ctrl+f hands-free · ctrl+l live · enter send · esc quit"))
	return b.String()
}

func (m *model) toggleTalk() {
	switch m.orchestrator.State() {
	case voice.StateListening:
		m.orchestrator.StopListening()
	default:
		if err := m.orchestrator.StartListening(context.Background()); err != nil {
			m.notice = err.Error()
		}
	}
}

func (m *model) toggleLive() {
	if m.session == nil {
		m.notice = "live mode unavailable"
		return
	}

	switch m.session.Status() {
	case live.StatusDisconnected:
		if err := m.session.Connect(context.Background()); err != nil {
			m.notice = err.Error()
		}
	default:
		if err := m.session.Disconnect(); err != nil {
			m.notice = err.Error()
		}
	}
}

func (m *model) applyEvent(event events.Event) {
	switch event := event.(type) {
	case events.StateChanged:
		m.state = voice.State(event.To)
	case events.TurnFailed:
		m.notice = event.Message
	case events.SessionStatusChanged:
		m.liveStatus = event.Status
	}
	m.refreshTranscript()
}

func (m *model) refreshTranscript() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, turn := range m.orchestrator.History() {
		text := turn.Text
		if turn.IsInProgress {
			text += " ▋"
		}

		switch turn.Role {
		case voice.TurnRoleUser:
			b.WriteString(userStyle.Render("you: ") + text)
		case voice.TurnRoleAssistant:
			b.WriteString(assistantStyle.Render("assistant: ") + text)
		case voice.TurnRoleSystem:
			b.WriteString(systemStyle.Render(text))
		}
		b.WriteString("\n")
	}

	m.viewport.SetContent(wordwrap.String(b.String(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m model) headerView() string {
	badges := []string{badgeStyle.Render(fmt.Sprintf("[%s]", m.state))}

	handsFree := badgeStyle.Render("[hands-free]")
	if m.orchestrator.HandsFree() {
		handsFree = badgeOnStyle.Render("[hands-free]")
	}
	badges = append(badges, handsFree)

	liveBadge := badgeStyle.Render(fmt.Sprintf("[live: %s]", m.liveStatus))
	if m.liveStatus == string(live.StatusConnected) {
		liveBadge = badgeOnStyle.Render("[live: connected]")
	}
	badges = append(badges, liveBadge)

	header := headerStyle.Render("deskvoice") + " " + strings.Join(badges, " ")
	if m.notice != "" {
		header += "  " + systemStyle.Render(m.notice)
	}
	return header
}

func (m model) meterView() string {
	filled := int(m.level * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	return meterStyle.Render("mic " + bar)
}
