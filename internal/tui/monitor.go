// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spectrallog/internal/spectrum"
	"spectrallog/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0455B")).
			Bold(true)
)

var quitKeys = key.NewBinding(key.WithKeys("q", "ctrl+c"))

// barWidth is the length of the bar drawn for the largest average.
const barWidth = 40

// Source provides the most recent snapshot. transport.Latest implements it.
type Source interface {
	Snapshot() (*transport.Snapshot, bool)
}

// MonitorOptions configures the labels and refresh rate of the monitor.
type MonitorOptions struct {
	Refresh    time.Duration // 0 selects 250ms
	WindowSize int           // transform size, for bin frequencies
	Rate       float64       // sample rate in Hz
}

// MonitorModel is the Bubble Tea model showing the running averages.
type MonitorModel struct {
	source Source
	state  func() string
	opts   MonitorOptions

	snap     *transport.Snapshot
	viewport viewport.Model
	ready    bool
}

type tickMsg time.Time

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// NewMonitorModel creates a monitor reading from source. state may be nil.
func NewMonitorModel(source Source, state func() string, opts MonitorOptions) MonitorModel {
	if opts.Refresh <= 0 {
		opts.Refresh = 250 * time.Millisecond
	}
	return MonitorModel{source: source, state: state, opts: opts}
}

// Init implements tea.Model.
func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderAverages())

	case tickMsg:
		if snap, ok := m.source.Snapshot(); ok {
			m.snap = snap
		}
		if m.ready {
			m.viewport.SetContent(m.renderAverages())
		}
		cmds = append(cmds, m.tick())

	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m MonitorModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Spectral Averages")
	help := infoStyle.Render("q: Quit")
	return fmt.Sprintf("%s  %s\n\n%s\n\n%s", title, m.status(), m.viewport.View(), help)
}

func (m MonitorModel) status() string {
	state := "unknown"
	if m.state != nil {
		state = m.state()
	}
	if state == "failed" {
		return failStyle.Render(state)
	}
	if m.snap == nil {
		return infoStyle.Render(state)
	}
	return infoStyle.Render(fmt.Sprintf("%s • cycle %d • run %s", state, m.snap.Cycle, m.snap.RunID))
}

// renderAverages draws one bar per tracked bin, scaled to the largest
// average.
func (m MonitorModel) renderAverages() string {
	if m.snap == nil {
		return "Waiting for the first cycle..."
	}

	var peak float32
	for _, v := range m.snap.Averages {
		if v > peak {
			peak = v
		}
	}

	var sb strings.Builder
	for i, v := range m.snap.Averages {
		k := m.snap.FirstBin + i
		n := 0
		if peak > 0 && v > 0 {
			n = int(v / peak * barWidth)
		}
		line := fmt.Sprintf("bin %-2d %9.1f Hz  %-*s %10.2f", k,
			spectrum.BinFrequency(k, m.opts.WindowSize, m.opts.Rate),
			barWidth, strings.Repeat("█", n), v)
		if i < len(m.snap.Counts) {
			line += fmt.Sprintf("  n=%d", m.snap.Counts[i])
		}
		if v == peak && peak > 0 {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if m.snap.AcquisitionFailed {
		sb.WriteString(failStyle.Render("last acquisition failed"))
		sb.WriteString("\n")
	}
	if !m.snap.Persisted {
		sb.WriteString(failStyle.Render("last persist failed"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// StartMonitor runs the monitor on the terminal until the user quits or ctx
// ends.
func StartMonitor(ctx context.Context, source Source, state func() string, opts MonitorOptions) error {
	p := tea.NewProgram(
		NewMonitorModel(source, state, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
