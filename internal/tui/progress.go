package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"attic/internal/compress"
)

const pollInterval = 100 * time.Millisecond

// ProgressModel renders a running compression job by polling snapshots.
// It has no channel into the worker: the job manager only guarantees
// that any snapshot is internally consistent.
type ProgressModel struct {
	snapshot func() compress.Job
	cancel   func() bool

	job      compress.Job
	started  time.Time
	width    int
	quitting bool
}

type tickMsg time.Time

func NewProgress(snapshot func() compress.Job, cancel func() bool) ProgressModel {
	return ProgressModel{
		snapshot: snapshot,
		cancel:   cancel,
		started:  time.Now(),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.job = m.snapshot()
		if m.job.State == compress.StateCompleted {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Ask the worker to stop at the next file boundary and
			// keep polling until it does.
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m ProgressModel) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	job := m.job
	ratio := 0.0
	if job.Total > 0 {
		ratio = float64(job.Current) / float64(job.Total)
		if ratio > 1 {
			ratio = 1
		}
	}

	state := ""
	if job.State == compress.StateCancelRequested {
		state = warnStyle.Render("  cancelling...")
	}

	lines := []string{
		titleStyle.Render("attic compress"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", job.Current, job.Total)) +
			dimStyle.Render(fmt.Sprintf("  errors:%d", job.Errors)) + state,
		labelStyle.Render(fmt.Sprintf("Saved: %s (%.1f%%)", FormatBytes(job.SavingsBytes()), job.SavingsPercent())),
		dimStyle.Render(truncate(job.CurrentFile, barWidth+2)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", time.Since(m.started).Round(time.Millisecond))),
		barStyle.Render(renderBar(barWidth, ratio)),
		dimStyle.Render("press q to cancel"),
	}

	return strings.Join(lines, "\n")
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return "..." + s[len(s)-max+3:]
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorInk)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)
)
