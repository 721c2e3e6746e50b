// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"thdscope/internal/telemetry"
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

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	aggregateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C")).
			Bold(true)
)

// refreshInterval paces registry polling. Measurement updates arrive
// faster than this, but terminal redraws beyond ~10 Hz buy nothing.
const refreshInterval = 100 * time.Millisecond

// levelBarWidth is the character width of the RMS level meter.
const levelBarWidth = 20

type tickMsg time.Time

// MeterModel is the Bubble Tea model for the live channel meter
// table. It polls the registry on a fixed tick and routes mute/solo
// toggles back through the registry's setters.
type MeterModel struct {
	registry      *telemetry.Registry
	channels      []telemetry.ChannelState
	selectedIndex int
	viewport      viewport.Model
	ready         bool
}

// NewMeterModel creates a meter model polling the given registry.
func NewMeterModel(registry *telemetry.Registry) MeterModel {
	return MeterModel{
		registry: registry,
		channels: make([]telemetry.ChannelState, 0, registry.Len()),
	}
}

// Init starts the refresh ticker.
func (m MeterModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles input and refresh ticks.
func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			m.viewport.SetContent(m.renderMeters())
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case tickMsg:
		m.channels = m.registry.Snapshot(m.channels)
		if m.ready {
			m.viewport.SetContent(m.renderMeters())
		}
		cmds = append(cmds, tick())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))):
			return m, tea.Quit

		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.viewport.SetContent(m.renderMeters())
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if m.selectedIndex < m.registry.Len()-1 {
				m.selectedIndex++
				m.viewport.SetContent(m.renderMeters())
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("m"))):
			if ch, ok := m.registry.Channel(m.selectedIndex); ok {
				m.registry.SetMuted(m.selectedIndex, !ch.Muted)
				m.channels = m.registry.Snapshot(m.channels)
				m.viewport.SetContent(m.renderMeters())
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("s"))):
			if ch, ok := m.registry.Channel(m.selectedIndex); ok {
				m.registry.SetSoloed(m.selectedIndex, !ch.Soloed)
				m.channels = m.registry.Snapshot(m.channels)
				m.viewport.SetContent(m.renderMeters())
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the UI.
func (m MeterModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("THD Channel Monitor")
	help := infoStyle.Render("↑/↓: Select • m: Mute • s: Solo • q: Quit")

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderMeters formats the per-channel table plus the aggregate line.
func (m MeterModel) renderMeters() string {
	var sb strings.Builder

	if len(m.channels) == 0 {
		return "Waiting for telemetry..."
	}

	for i := range m.channels {
		ch := &m.channels[i]

		flags := ""
		if ch.Muted {
			flags += " [M]"
		}
		if ch.Soloed {
			flags += " [S]"
		}

		line := fmt.Sprintf("[%d] %-12s THD %7.3f%%  THD+N %7.3f%%  Peak %5.2f%s\n",
			ch.ChannelID+1, ch.Name, ch.THD, ch.THDN, ch.PeakLevel, flags)
		line += fmt.Sprintf("    %s %s\n", levelBar(ch.Level), levelLabel(ch.Level))

		switch {
		case i == m.selectedIndex:
			line = highlightStyle.Render(line)
		case ch.Muted:
			line = mutedStyle.Render(line)
		}

		sb.WriteString(line)
		sb.WriteString("\n")
	}

	agg := telemetry.ComputeAggregateTHD(m.channels)
	summary := fmt.Sprintf("Aggregate THD %.3f%%  THD+N %.3f%%", agg.THD, agg.THDN)
	if agg.WorstChannel != "" {
		summary += fmt.Sprintf("  (worst: %s)", agg.WorstChannel)
	}
	sb.WriteString(aggregateStyle.Render(summary))
	sb.WriteString("\n")

	return sb.String()
}

// levelBar renders an RMS level as a fixed-width bar. Full scale sits
// at 1.0; anything above clips the bar rather than the layout.
func levelBar(level float64) string {
	filled := int(math.Round(level * levelBarWidth))
	if filled > levelBarWidth {
		filled = levelBarWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", levelBarWidth-filled) + "]"
}

// levelLabel formats an RMS level in dBFS, with a floor for silence.
func levelLabel(level float64) string {
	if level <= 0 {
		return "  -inf dB"
	}
	return fmt.Sprintf("%6.1f dB", 20*math.Log10(level))
}

// StartMeterUI launches the Bubble Tea TUI over the given registry.
// It blocks until the user quits.
func StartMeterUI(registry *telemetry.Registry) error {
	p := tea.NewProgram(
		NewMeterModel(registry),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
