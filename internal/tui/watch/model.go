package watch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/flightcheck/internal/events"
)

type stepState struct {
	id       string
	status   string
	attempts int
}

// Model is the BubbleTea model for the run watch TUI. It renders the step
// list of a single run, fed by the in-process event hub while the engine
// executes in another goroutine.
type Model struct {
	steps []*stepState
	byID  map[string]*stepState

	runID    string
	trigger  string
	findings []string

	hubEvents   <-chan events.Event
	unsubscribe func()

	spin  spinner.Model
	pulse Pulse
	theme Theme

	width int
	done  bool
	clean bool
}

// New creates a watch model over the ordered step selection, subscribed to
// the hub. The caller owns the engine goroutine; the model only observes.
func New(hub *events.Hub, stepIDs []string) *Model {
	theme := NewDefaultTheme()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.StatusRunning

	m := &Model{
		byID:  make(map[string]*stepState, len(stepIDs)),
		spin:  sp,
		pulse: NewPulse(),
		theme: theme,
	}
	for _, id := range stepIDs {
		st := &stepState{id: id, status: "pending"}
		m.steps = append(m.steps, st)
		m.byID[id] = st
	}
	m.hubEvents, m.unsubscribe = hub.Subscribe()
	return m
}

type eventMsg events.Event

type hubClosedMsg struct{}

type tickMsg time.Time

func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return hubClosedMsg{}
		}
		return eventMsg(e)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		receiveNextEvent(m.hubEvents),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.unsubscribe()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.pulse.Decay()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case hubClosedMsg:
		return m, tea.Quit

	case eventMsg:
		m.pulse.OnEvent()
		m.apply(events.Event(msg))
		if m.done {
			m.unsubscribe()
			return m, tea.Quit
		}
		return m, receiveNextEvent(m.hubEvents)
	}

	return m, nil
}

// apply folds one hub event into the model state.
func (m *Model) apply(e events.Event) {
	var data map[string]any
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return
	}
	str := func(key string) string {
		s, _ := data[key].(string)
		return s
	}

	switch e.Type {
	case events.TypeRunStarted:
		m.runID = str("run_id")
		m.trigger = str("trigger")
	case events.TypeStepStarted:
		if st, ok := m.byID[str("step")]; ok {
			st.status = "running"
			if st.attempts == 0 {
				st.attempts = 1
			}
		}
	case events.TypeStepRetry:
		if st, ok := m.byID[str("step")]; ok {
			st.attempts++
		}
	case events.TypeStepFinished:
		if st, ok := m.byID[str("step")]; ok {
			st.status = str("status")
		}
	case events.TypeProbeFinding:
		m.findings = append(m.findings,
			fmt.Sprintf("%s %s (step %s)", str("severity"), str("probe"), str("step")))
	case events.TypeRunFinished:
		m.done = true
		m.clean, _ = data["clean"].(bool)
	}
}

func (m *Model) View() string {
	title := m.theme.Title.Render("flightcheck run")
	meta := m.theme.Dim.Render(fmt.Sprintf("%s  trigger=%s", m.runID, m.trigger))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", meta, "  ", m.pulse.Render(m.theme))

	var rows []string
	for _, st := range m.steps {
		rows = append(rows, fmt.Sprintf("%s %s%s", m.marker(st), st.id, m.attemptsSuffix(st)))
	}
	body := m.theme.Border.Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

	parts := []string{header, body}
	if len(m.findings) > 0 {
		parts = append(parts, m.theme.Highlight.Render("findings:"))
		for _, f := range m.findings {
			parts = append(parts, m.theme.Dim.Render("  "+f))
		}
	}
	if m.done {
		if m.clean {
			parts = append(parts, m.theme.StatusOK.Render("PASSED"))
		} else {
			parts = append(parts, m.theme.StatusFailed.Render("FAILED"))
		}
	} else {
		parts = append(parts, m.theme.Dim.Render(" [q] quit (run keeps going)"))
	}

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m *Model) marker(st *stepState) string {
	switch st.status {
	case "running":
		return m.spin.View()
	case "succeeded":
		return m.theme.StatusOK.Render("✓")
	case "soft_failed":
		return m.theme.StatusSoft.Render("~")
	case "hard_failed":
		return m.theme.StatusFailed.Render("✗")
	case "skipped":
		return m.theme.StatusSkipped.Render("-")
	default:
		return m.theme.StatusPending.Render("·")
	}
}

func (m *Model) attemptsSuffix(st *stepState) string {
	if st.attempts > 1 {
		return m.theme.Dim.Render(fmt.Sprintf(" (attempt %d)", st.attempts))
	}
	return ""
}
