// Package scanui is the interactive diagnostic: a live list of visible
// Find My beacons with raw-smoothed RSSI and estimated distance, for
// checking what the door would see before trusting it with the dog.
package scanui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"doggydoor/internal/beacon"
	"doggydoor/internal/distance"
)

const refreshInterval = 500 * time.Millisecond

// tickMsg triggers a snapshot refresh.
type tickMsg time.Time

// Model is the Bubble Tea model for the scan tool. A goroutine outside the
// model pumps source samples into the tracker; the model only snapshots.
type Model struct {
	tracker   *beacon.Tracker
	estimator distance.Estimator
	source    beacon.Source
	silence   time.Duration

	width    int
	height   int
	paused   bool
	readings []beacon.Reading
}

// New creates the scan tool model.
func New(tracker *beacon.Tracker, estimator distance.Estimator, source beacon.Source, silence time.Duration) Model {
	return Model{
		tracker:   tracker,
		estimator: estimator,
		source:    source,
		silence:   silence,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return m, tea.Quit
		case "p", "P":
			m.paused = !m.paused
		}
		return m, nil

	case tickMsg:
		if !m.paused {
			m.tracker.Evict(m.silence)
			m.readings = m.tracker.Snapshot()
		}
		return m, tick()
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Scanning for Find My beacons..."
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render(fmt.Sprintf("FIND MY BEACONS [%d]", len(m.readings))))
	b.WriteString("\n")
	b.WriteString(styleHeader.Render(fmt.Sprintf(" %-17s  %9s  %9s  %7s  %s",
		"ADDRESS", "RSSI", "DISTANCE", "SAMPLES", "LAST SEEN")))
	b.WriteString("\n")
	b.WriteString(styleHeader.Render(strings.Repeat("-", min(m.width, 64))))
	b.WriteString("\n")

	if len(m.readings) == 0 {
		b.WriteString(styleDim.Render(" No beacons visible. Waiting for advertisements..."))
		b.WriteString("\n")
	}

	maxRows := m.height - 5
	for i, r := range m.readings {
		if i >= maxRows {
			b.WriteString(styleDim.Render(fmt.Sprintf(" ... %d more", len(m.readings)-i)))
			b.WriteString("\n")
			break
		}
		est := m.estimator.Estimate(r)
		age := time.Since(r.LastSeen).Round(time.Second)
		b.WriteString(fmt.Sprintf(" %s  %s  %s  %s  %s\n",
			styleAddr.Render(fmt.Sprintf("%-17s", r.Addr)),
			styleValue.Render(fmt.Sprintf("%6.1fdBm", r.Smoothed)),
			styleValue.Render(fmt.Sprintf("%7.1fft", est.Feet)),
			styleValue.Render(fmt.Sprintf("%7d", r.Samples)),
			styleDim.Render(fmt.Sprintf("%s ago (%s)", age, est.Confidence)),
		))
	}

	for b.Len() > 0 && strings.Count(b.String(), "\n") < m.height-1 {
		b.WriteString("\n")
	}

	b.WriteString(m.statusBar())
	return b.String()
}

func (m Model) statusBar() string {
	mode := styleScanning.Render("[SCANNING]")
	if m.paused {
		mode = stylePaused.Render("[PAUSED]")
	}
	health := "radio ok"
	if !m.source.Healthy() {
		health = "radio down"
	}
	info := fmt.Sprintf(" Beacons: %d  %s  Silence window: %s  (p)ause (q)uit",
		len(m.readings), health, m.silence)
	return styleStatusBar.Width(m.width).Render(mode + info)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
