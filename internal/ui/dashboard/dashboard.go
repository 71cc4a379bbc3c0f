// Package dashboard is the terminal UI for `devgraphd serve --ui`, ported
// from the teacher's cmd/circular ui.go/model but repurposed to show live
// HMR and optimizer telemetry instead of a code-quality report.
package dashboard

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devgraph/devgraph/internal/devserver"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	cycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type snapshotMsg devserver.Snapshot

type model struct {
	list list.Model
	snap devserver.Snapshot
	seen int
}

func initialModel() model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Recent HMR Events"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{list: l}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case snapshotMsg:
		m.snap = devserver.Snapshot(msg)
		m.seen++
		m.list.InsertItem(0, item{
			title: fmt.Sprintf("#%d %s", m.seen, m.snap.At.Format("15:04:05")),
			desc:  m.snap.LastEvent,
		})
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf(
		"client: %d modules | ssr: %d modules | updates: %d | full reloads: %d",
		m.snap.ClientModules, m.snap.SSRModules, m.snap.UpdatesTotal, m.snap.FullReloadsTotal,
	))

	var summary string
	if m.snap.Cycles == 0 {
		summary = successStyle.Render("no import cycles")
	} else {
		summary = cycleStyle.Render(fmt.Sprintf("%d import cycles", m.snap.Cycles))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("devgraphd"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

// Program wraps a running bubbletea program and implements
// devserver.DashboardSink, letting a Server push snapshots to it directly.
type Program struct {
	tea *tea.Program
}

// New builds a Program ready to Run. Call AttachDashboard(p) on the Server
// before Run so snapshots start flowing once the watcher fires.
func New() *Program {
	return &Program{tea: tea.NewProgram(initialModel(), tea.WithAltScreen())}
}

// Send implements devserver.DashboardSink.
func (p *Program) Send(snap devserver.Snapshot) {
	p.tea.Send(snapshotMsg(snap))
}

// Run blocks until the user quits the dashboard (q or ctrl+c).
func (p *Program) Run() error {
	_, err := p.tea.Run()
	return err
}
