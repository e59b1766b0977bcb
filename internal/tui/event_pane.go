package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/loc-core/loc/internal/events"
)

// EventPaneModel is a scrolling log of the engine's diagnostic events:
// remediation decisions, resource contention, interference detection, and
// aggregation completions — the events an operator watches to understand
// *why* the scheduler did something, grounded on the teacher's
// AgentPaneModel viewport (bubbles/viewport), retargeted from per-agent
// subprocess output lines to one shared diagnostic feed.
type EventPaneModel struct {
	lines    []string
	viewport viewport.Model
	width    int
	height   int
	focused  bool
}

// NewEventPaneModel creates an empty event pane.
func NewEventPaneModel() EventPaneModel {
	return EventPaneModel{viewport: viewport.New(0, 0)}
}

// Update handles messages for the event pane.
func (m EventPaneModel) Update(msg tea.Msg) (EventPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskRemediatedEvent:
		m.append(msg.Timestamp, fmt.Sprintf("remediate task=%s action=%s", shortID(msg.ID), msg.Remediation))

	case events.ResourceContentionEvent:
		m.append(msg.Timestamp, fmt.Sprintf("contention task=%s resource=%s", shortID(msg.TaskID()), msg.ResourceID))

	case events.InterferenceDetectedEvent:
		m.append(msg.Timestamp, fmt.Sprintf("interference task=%s domain=%s count=%d", shortID(msg.TaskID_), msg.Domain, msg.Count))

	case events.AggregationCompletedEvent:
		m.append(msg.Timestamp, fmt.Sprintf("aggregated parent=%s children=%d", shortID(msg.ParentID), msg.ChildCount))

	case events.TaskCycleFailedEvent:
		m.append(msg.Timestamp, fmt.Sprintf("cycle detected: %s", strings.Join(msg.IDs, ",")))
	}

	return m, cmd
}

func (m *EventPaneModel) append(at time.Time, line string) {
	m.lines = append(m.lines, fmt.Sprintf("[%s] %s", at.Format("15:04:05"), line))
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the event pane.
func (m EventPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	title := StyleTitle.Render("Events")
	content := title + "\n" + m.viewport.View()

	return style.Width(m.width - 2).Height(m.height - 2).Render(content)
}

func (m *EventPaneModel) resizeViewport() {
	m.viewport.Width = max(10, m.width-4)
	m.viewport.Height = max(3, m.height-5)
}

// SetSize updates the pane dimensions.
func (m *EventPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *EventPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
