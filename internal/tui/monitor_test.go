// SPDX-License-Identifier: MIT
package tui

import (
	"strings"
	"testing"

	"spectrallog/internal/transport"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sized(t *testing.T, m MonitorModel) MonitorModel {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(MonitorModel)
}

func TestMonitorWaitsForFirstCycle(t *testing.T) {
	m := NewMonitorModel(transport.NewLatest(), nil, MonitorOptions{WindowSize: 16, Rate: 125000})
	assert.Equal(t, "Initializing...", m.View())
	require.NotNil(t, m.Init())

	m = sized(t, m)
	assert.Contains(t, m.View(), "Waiting for the first cycle")
	assert.Contains(t, m.View(), "unknown")
}

func TestMonitorRendersSnapshot(t *testing.T) {
	latest := transport.NewLatest()
	require.NoError(t, latest.Send(&transport.Snapshot{
		RunID:     "run-7",
		Cycle:     12,
		FirstBin:  3,
		Averages:  []float32{0, 8000, 0, 0, 0},
		Counts:    []uint64{372, 372, 372, 372, 372},
		Persisted: true,
	}))

	m := sized(t, NewMonitorModel(latest, func() string { return "pacing" },
		MonitorOptions{WindowSize: 16, Rate: 125000}))
	next, cmd := m.Update(tickMsg{})
	m = next.(MonitorModel)
	assert.NotNil(t, cmd, "ticks keep polling")

	view := m.View()
	assert.Contains(t, view, "cycle 12")
	assert.Contains(t, view, "run-7")
	assert.Contains(t, view, "31250.0 Hz")
	assert.Contains(t, view, strings.Repeat("█", barWidth))
	assert.Contains(t, view, "n=372")
	assert.NotContains(t, view, "persist failed")
}

func TestMonitorFlagsFailures(t *testing.T) {
	latest := transport.NewLatest()
	require.NoError(t, latest.Send(&transport.Snapshot{
		FirstBin:          3,
		Averages:          []float32{1},
		AcquisitionFailed: true,
	}))
	m := sized(t, NewMonitorModel(latest, func() string { return "failed" }, MonitorOptions{WindowSize: 16}))
	next, _ := m.Update(tickMsg{})

	view := next.(MonitorModel).View()
	assert.Contains(t, view, "last acquisition failed")
	assert.Contains(t, view, "last persist failed")
	assert.Contains(t, view, "failed")
}

func TestMonitorQuits(t *testing.T) {
	m := NewMonitorModel(transport.NewLatest(), nil, MonitorOptions{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
