package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loc-core/loc/internal/events"
)

// agentRow is the console's local projection of one agent's status.
type agentRow struct {
	ID      string
	Domains []string
	Status  string
}

// AgentPaneModel is the registered-agent roster pane.
type AgentPaneModel struct {
	agents      map[string]*agentRow
	order       []string
	selectedIdx int
	width       int
	height      int
	focused     bool
}

// NewAgentPaneModel creates an empty agent pane.
func NewAgentPaneModel() AgentPaneModel {
	return AgentPaneModel{agents: make(map[string]*agentRow)}
}

// Update handles messages for the agent pane.
func (m AgentPaneModel) Update(msg tea.Msg) (AgentPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		}

	case events.AgentRegisteredEvent:
		if _, exists := m.agents[msg.ID]; !exists {
			m.agents[msg.ID] = &agentRow{ID: msg.ID, Domains: msg.Domains, Status: "idle"}
			m.order = append(m.order, msg.ID)
		}

	case events.AgentStatusChangedEvent:
		if a, ok := m.agents[msg.ID]; ok {
			a.Status = msg.Status
		}
	}

	return m, nil
}

// View renders the agent pane.
func (m AgentPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Agents")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", max(0, m.width-4)))
	b.WriteString("\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("no agents registered"))
	}
	for i, id := range m.order {
		a := m.agents[id]
		icon := StyleStatusRunning.Render("●")
		if a.Status == "idle" {
			icon = StyleStatusComplete.Render("○")
		}
		line := fmt.Sprintf("%s %s  [%s]", icon, shortID(a.ID), strings.Join(a.Domains, ","))
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(
		lipgloss.NewStyle().Width(m.width - 4).Render(b.String()),
	)
}

// SetSize updates the pane dimensions.
func (m *AgentPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *AgentPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
