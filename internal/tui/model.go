package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loc-core/loc/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneAgents
	PaneEvents
)

const paneCount = 3

// Model is the root Bubble Tea model for the status console.
type Model struct {
	taskPane    TaskPaneModel
	agentPane   AgentPaneModel
	eventPane   EventPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	width       int
	height      int
	quitting    bool
}

// New creates a new status console model, subscribed to every topic on
// bus via SubscribeAll.
func New(bus *events.Bus) Model {
	m := Model{
		taskPane:  NewTaskPaneModel(),
		agentPane: NewAgentPaneModel(),
		eventPane: NewEventPaneModel(),
		eventSub:  bus.SubscribeAll(256),
	}
	m.updateFocusStates()
	return m
}

// Init starts the event-wait loop.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()
		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()
		case KeyPane1:
			m.focusedPane = PaneTasks
			m.updateFocusStates()
		case KeyPane2:
			m.focusedPane = PaneAgents
			m.updateFocusStates()
		case KeyPane3:
			m.focusedPane = PaneEvents
			m.updateFocusStates()
		default:
			switch m.focusedPane {
			case PaneTasks:
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneAgents:
				var cmd tea.Cmd
				m.agentPane, cmd = m.agentPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneEvents:
				var cmd tea.Cmd
				m.eventPane, cmd = m.eventPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.Event:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		m.agentPane, cmd = m.agentPane.Update(msg)
		cmds = append(cmds, cmd)
		m.eventPane, cmd = m.eventPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1
	topHeight := (availableHeight * 55) / 100
	bottomHeight := availableHeight - topHeight

	left := lipgloss.NewStyle().Width(leftWidth).Height(availableHeight).Render(m.taskPane.View())
	right := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Width(rightWidth).Height(topHeight).Render(m.agentPane.View()),
		lipgloss.NewStyle().Width(rightWidth).Height(bottomHeight).Render(m.eventPane.View()),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, body, HelpView())
}

func (m *Model) computeLayout() {
	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1
	topHeight := (availableHeight * 55) / 100
	bottomHeight := availableHeight - topHeight

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.agentPane.SetSize(rightWidth, topHeight)
	m.eventPane.SetSize(rightWidth, bottomHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.agentPane.SetFocused(m.focusedPane == PaneAgents)
	m.eventPane.SetFocused(m.focusedPane == PaneEvents)
}
