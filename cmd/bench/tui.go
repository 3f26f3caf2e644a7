package main

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 100 * time.Millisecond

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8BE9FD"))

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2)
)

type tickMsg time.Time

type resultMsg BenchmarkResult

// model shows a spinner and a progress bar while the benchmark runs, then
// the results table
type model struct {
	queryType string
	total     int
	workers   int
	run       func(done *atomic.Int64) BenchmarkResult
	done      *atomic.Int64

	spinner  spinner.Model
	progress progress.Model
	result   *BenchmarkResult
	aborted  bool
}

func newModel(queryType string, total, workers int, run func(done *atomic.Int64) BenchmarkResult) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		queryType: queryType,
		total:     total,
		workers:   workers,
		run:       run,
		done:      new(atomic.Int64),
		spinner:   s,
		progress:  progress.New(progress.WithDefaultGradient()),
	}
}

func (m model) Init() tea.Cmd {
	done, run := m.done, m.run
	return tea.Batch(
		m.spinner.Tick,
		tick(),
		func() tea.Msg { return resultMsg(run(done)) },
	)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) fraction() float64 {
	if m.total <= 0 {
		return 1
	}
	return min(float64(m.done.Load())/float64(m.total), 1)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(min(msg.Width-10, 80), 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		if m.result != nil {
			return m, nil
		}
		return m, tea.Batch(m.progress.SetPercent(m.fraction()), tick())

	case resultMsg:
		r := BenchmarkResult(msg)
		m.result = &r
		return m, tea.Quit
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Cyrcle Benchmark"))
	b.WriteString("\n")

	switch {
	case m.result != nil:
		b.WriteString(renderResults(*m.result, m.workers))
	case m.aborted:
		b.WriteString(dimStyle.Render(fmt.Sprintf("Aborted after %d of %d queries", m.done.Load(), m.total)))
	default:
		fmt.Fprintf(&b, "%s Running %d %s queries with %d workers...\n\n",
			m.spinner.View(), m.total, m.queryType, m.workers)
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d / %d queries   press 'q' to quit", m.done.Load(), m.total)))
	}

	b.WriteString("\n")
	return b.String()
}

// renderResults lays the report out as an aligned table in a box
func renderResults(result BenchmarkResult, workers int) string {
	rows := resultRows(result, workers)

	width := 0
	for _, row := range rows {
		width = max(width, len(row[0]))
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = labelStyle.Render(fmt.Sprintf("%-*s", width, row[0])) + "  " + statStyle.Render(row[1])
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
