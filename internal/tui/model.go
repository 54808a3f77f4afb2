// Package tui renders batch progress and the interactive init segment
// picker.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohaanymo/initfix/internal/config"
	"github.com/mohaanymo/initfix/internal/engine"
	"github.com/mohaanymo/initfix/internal/models"
)

// Messages
type (
	progressMsg engine.ProgressUpdate
	tickMsg     time.Time
	DoneMsg     struct{}
	ErrorMsg    struct{ Err error }
)

// States
type appState int

const (
	stateStarting appState = iota
	stateRunning
	stateDone
	stateError
)

type jobProgress struct {
	track   *models.Track
	stage   engine.Stage
	loaded  int64
	written int64
	err     error
}

// Model is the progress view of one Run.
type Model struct {
	state      appState
	width      int
	height     int
	frame      int
	source     string
	cfg        *config.Config
	progressCh <-chan engine.ProgressUpdate

	jobs     map[string]*jobProgress
	jobOrder []string
	finished int
	failed   int
	loaded   int64
	written  int64

	startTime time.Time
	err       error
}

// NewModel creates a progress model for tracks, reading updates from
// progressCh until it is closed.
func NewModel(progressCh <-chan engine.ProgressUpdate, tracks []*models.Track, source string, cfg *config.Config) *Model {
	jobs := make(map[string]*jobProgress, len(tracks))
	order := make([]string, 0, len(tracks))
	for _, track := range tracks {
		jobs[track.ID] = &jobProgress{track: track}
		order = append(order, track.ID)
	}

	return &Model{
		source:     source,
		cfg:        cfg,
		progressCh: progressCh,
		jobs:       jobs,
		jobOrder:   order,
		startTime:  time.Now(),
		state:      stateStarting,
		width:      80,
		height:     24,
	}
}

// Err returns the error that ended the run, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listenProgress(), tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case progressMsg:
		m.handleProgress(engine.ProgressUpdate(msg))
		if m.state == stateStarting {
			m.state = stateRunning
		}
		return m, m.listenProgress()

	case tickMsg:
		m.frame++
		return m, tick()

	case DoneMsg:
		if m.state != stateError {
			m.state = stateDone
		}
		return m, tea.Quit

	case ErrorMsg:
		m.state = stateError
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleProgress(p engine.ProgressUpdate) {
	job, ok := m.jobs[p.TrackID]
	if !ok {
		return
	}
	job.stage = p.Stage
	job.loaded += p.BytesLoaded
	job.written += p.BytesWritten
	m.loaded += p.BytesLoaded
	m.written += p.BytesWritten

	switch {
	case p.Error != nil:
		job.err = p.Error
		m.failed++
		m.finished++
	case p.Completed:
		m.finished++
	}
}

func (m *Model) View() string {
	w := clamp(m.width-4, 60, 100)

	var b strings.Builder
	b.WriteString(m.viewHeader(w))
	b.WriteString("\n\n")
	b.WriteString(m.viewContent(w))
	return b.String()
}

func (m *Model) viewHeader(w int) string {
	title := titleStyle.Render("initfix")
	subtitle := dimStyle.Render(" - init segment workarounds")

	line2 := fmt.Sprintf("%s %s  %s %s",
		labelStyle.Render("mode:"), valueStyle.Render(m.cfg.Mode),
		labelStyle.Render("platform:"), valueStyle.Render(m.cfg.Platform.String()))
	line3 := labelStyle.Render("source: ") + dimStyle.Render(truncate(m.source, w-14))

	return headerStyle.Width(w).Render(title + subtitle + "\n" + line2 + "\n" + line3)
}

func (m *Model) viewContent(w int) string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Init segments"))
	b.WriteString("\n\n")
	for _, id := range m.jobOrder {
		b.WriteString(m.renderJob(m.jobs[id]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderOverallProgress(w - 6))
	b.WriteString("\n\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(keyHelpStyle.Render("q") + " quit  " + keyHelpStyle.Render("ctrl+c") + " cancel"))

	return contentStyle.Width(w).Render(b.String())
}

func (m *Model) renderJob(job *jobProgress) string {
	var b strings.Builder

	b.WriteString(trackBadge(job.track))
	b.WriteString(" ")
	b.WriteString(normalStyle.Render(fmt.Sprintf("%-28s", truncate(job.track.DisplayName(), 28))))
	b.WriteString(" ")

	switch {
	case job.err != nil:
		b.WriteString(errorStyle.Render("✗ " + truncate(job.err.Error(), 40)))
	case job.stage == engine.StageWritten:
		b.WriteString(successStyle.Render("✓ "))
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s → %s", formatBytes(job.loaded), formatBytes(job.written))))
	default:
		b.WriteString(spinnerStyle.Render(spinner[m.frame%len(spinner)]))
		b.WriteString(stageStyle(job.stage).Render(" " + job.stage.String()))
	}
	return b.String()
}

func (m *Model) renderOverallProgress(w int) string {
	pct := 0.0
	if total := len(m.jobOrder); total > 0 {
		pct = float64(m.finished) / float64(total)
	}

	barWidth := clamp(w-20, 20, 80)
	filled := clamp(int(pct*float64(barWidth)), 0, barWidth)

	bar := progressActive.Render(strings.Repeat("█", filled)) +
		progressWait.Render(strings.Repeat("░", barWidth-filled))
	return bar + " " + statValueStyle.Render(fmt.Sprintf("%d/%d", m.finished, len(m.jobOrder)))
}

func (m *Model) renderStats() string {
	stats := []struct {
		label string
		value string
	}{
		{"Read", formatBytes(m.loaded)},
		{"Written", formatBytes(m.written)},
		{"Failed", fmt.Sprint(m.failed)},
		{"Elapsed", formatDuration(time.Since(m.startTime))},
	}

	parts := make([]string, 0, len(stats))
	for _, s := range stats {
		parts = append(parts, statLabelStyle.Render(s.label+": ")+statValueStyle.Render(s.value))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderStatus() string {
	switch m.state {
	case stateStarting:
		return spinnerStyle.Render(spinner[m.frame%len(spinner)]) + dimStyle.Render(" starting...")
	case stateRunning:
		return spinnerStyle.Render(spinner[m.frame%len(spinner)]) + dimStyle.Render(" rewriting init segments...")
	case stateDone:
		if m.failed > 0 {
			return warningStyle.Render(fmt.Sprintf("! finished with %d failures", m.failed))
		}
		return successStyle.Render("✓ all init segments processed")
	case stateError:
		return errorStyle.Render(fmt.Sprintf("✗ error: %v", m.err))
	}
	return ""
}

func (m *Model) listenProgress() tea.Cmd {
	return func() tea.Msg {
		p, ok := <-m.progressCh
		if !ok {
			return DoneMsg{}
		}
		return progressMsg(p)
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Helpers

func trackBadge(t *models.Track) string {
	switch {
	case t.IsAudio():
		return audioBadge.Render("AUDIO")
	case t.InitSegment != nil && t.InitSegment.FilePath != "":
		return fileBadge.Render("FILE ")
	default:
		return videoBadge.Render("VIDEO")
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d - m*time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
