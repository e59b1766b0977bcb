package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loc-core/loc/internal/events"
)

// taskRow is the console's local projection of one task's lifecycle,
// rebuilt purely from the event stream (the console never reads the
// engine's TaskStore directly — same "consumers are handed state via
// events, never given a reference" rule the Collaboration Bus follows).
type taskRow struct {
	ID               string
	Domain           string
	Status           string
	Priority         int
	AssignedTo       string
	PredictedSuccess float64
	Reason           string
	Remediation      string
}

// TaskPaneModel is the task counts/list/detail pane.
type TaskPaneModel struct {
	tasks           map[string]*taskRow
	order           []string
	diagnosticOrder []string // last dependency ordering the scheduler published; nil until the first cycle-free tick
	selectedIdx     int
	width           int
	height          int
	focused         bool
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{tasks: make(map[string]*taskRow)}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
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

	case events.TaskSubmittedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &taskRow{ID: msg.ID, Domain: msg.Domain, Status: "pending", Priority: 1}
			m.order = append(m.order, msg.ID)
		}

	case events.TaskAssignedEvent:
		if t, ok := m.tasks[msg.ID]; ok {
			t.Status = "processing"
			t.AssignedTo = msg.AgentID
			t.PredictedSuccess = msg.PredictedSuccess
		}

	case events.TaskCompletedEvent:
		if t, ok := m.tasks[msg.ID]; ok {
			t.Status = "completed"
			t.AssignedTo = msg.AgentID
		}

	case events.TaskFailedEvent:
		if t, ok := m.tasks[msg.ID]; ok {
			t.Status = "failed"
			t.Reason = msg.Reason
		}

	case events.TaskCycleFailedEvent:
		for _, id := range msg.IDs {
			if t, ok := m.tasks[id]; ok {
				t.Status = "failed"
				t.Reason = "CYCLIC_DEPENDENCY_FAILURE"
			}
		}

	case events.TaskRemediatedEvent:
		if t, ok := m.tasks[msg.ID]; ok {
			t.Remediation = msg.Remediation
		}

	case events.DiagnosticOrderEvent:
		m.diagnosticOrder = msg.Order
	}

	return m, nil
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := min(32, m.width/3)
	detailWidth := m.width - listWidth - 5

	var counts strings.Builder
	pending, processing, waiting, completed, failed := m.counts()
	counts.WriteString(StyleTitle.Render("Tasks"))
	counts.WriteString("\n")
	counts.WriteString(fmt.Sprintf("pending %s  processing %s  waiting %s  completed %s  failed %s\n",
		StyleStatusPending.Render(fmt.Sprintf("%d", pending)),
		StyleStatusRunning.Render(fmt.Sprintf("%d", processing)),
		StyleStatusWaiting.Render(fmt.Sprintf("%d", waiting)),
		StyleStatusComplete.Render(fmt.Sprintf("%d", completed)),
		StyleStatusFailed.Render(fmt.Sprintf("%d", failed)),
	))
	counts.WriteString(strings.Repeat("-", max(0, m.width-4)))
	counts.WriteString("\n")

	list := m.renderList(listWidth)
	detail := m.renderDetail(detailWidth)

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, detail)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(counts.String() + body)
}

func (m TaskPaneModel) counts() (pending, processing, waiting, completed, failed int) {
	for _, t := range m.tasks {
		switch t.Status {
		case "pending":
			pending++
		case "processing":
			processing++
		case "waiting_for_subtasks":
			waiting++
		case "completed":
			completed++
		case "failed":
			failed++
		}
	}
	return
}

func (m TaskPaneModel) renderList(width int) string {
	var b strings.Builder
	for i, id := range m.order {
		t := m.tasks[id]
		line := fmt.Sprintf("%s #%s %s/%s", statusIcon(t.Status), m.diagnosticRank(id), shortID(t.ID), t.Domain)
		if len(line) > width {
			line = line[:width]
		}
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("no tasks yet"))
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func (m TaskPaneModel) renderDetail(width int) string {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.order) {
		return ""
	}
	t := m.tasks[m.order[m.selectedIdx]]
	var b strings.Builder
	fmt.Fprintf(&b, "id:          %s\n", t.ID)
	fmt.Fprintf(&b, "domain:      %s\n", t.Domain)
	fmt.Fprintf(&b, "order:       %s\n", m.diagnosticRank(t.ID))
	fmt.Fprintf(&b, "status:      %s\n", t.Status)
	fmt.Fprintf(&b, "assignedTo:  %s\n", t.AssignedTo)
	fmt.Fprintf(&b, "predicted:   %.2f\n", t.PredictedSuccess)
	if t.Remediation != "" {
		fmt.Fprintf(&b, "remediation: %s\n", t.Remediation)
	}
	if t.Reason != "" {
		fmt.Fprintf(&b, "reason:      %s\n", t.Reason)
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

// diagnosticRank renders id's 1-based position in the last published
// dependency ordering, or "-" if id isn't in it (not pending, or the last
// sweep found a cycle and no ordering was published).
func (m TaskPaneModel) diagnosticRank(id string) string {
	for i, ordered := range m.diagnosticOrder {
		if ordered == id {
			return fmt.Sprintf("%d", i+1)
		}
	}
	return "-"
}

func statusIcon(status string) string {
	switch status {
	case "processing":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "waiting_for_subtasks":
		return StyleStatusWaiting.Render("▸")
	default:
		return StyleStatusPending.Render("○")
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
