// Command logunit-tui is a read-only terminal inspector over a log
// directory: it lists segments and their known/trimmed/pending counts
// and compaction ratio, and can hex-dump a chosen frame within a
// chosen segment.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/logunit/pkg/logunit"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8800")).
			Bold(true)

	dumpHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2)

	dumpBodyStyle = lipgloss.NewStyle().MarginLeft(2)
)

type viewMode int

const (
	modeTable viewMode = iota
	modeHexDump
)

type keyMap struct {
	Quit      key.Binding
	Refresh   key.Binding
	View      key.Binding
	Back      key.Binding
	NextFrame key.Binding
	PrevFrame key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	View: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "hex dump"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "b"),
		key.WithHelp("esc", "back"),
	),
	NextFrame: key.NewBinding(
		key.WithKeys("n", "l"),
		key.WithHelp("n", "next frame"),
	),
	PrevFrame: key.NewBinding(
		key.WithKeys("p", "h"),
		key.WithHelp("p", "prev frame"),
	),
}

type segmentRow struct {
	name           string
	known, trimmed int
	pending        int
}

type model struct {
	logDir string
	cfg    logunit.EngineConfig
	table  table.Model
	err    error

	mode          viewMode
	dumpSegment   string
	dumpFrame     int
	dump          *logunit.FrameDump
	dumpErr       error
}

func initialModel(logDir string, cfg logunit.EngineConfig) model {
	columns := []table.Column{
		{Title: "Segment", Width: 40},
		{Title: "Known", Width: 8},
		{Title: "Trimmed", Width: 8},
		{Title: "Pending", Width: 8},
		{Title: "Ratio", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)

	m := model{logDir: logDir, cfg: cfg, table: t}
	m.refresh()
	return m
}

func (m *model) refresh() {
	rows, err := scanSegments(m.logDir, m.cfg)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil

	trows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		ratio := "n/a"
		if r.pending > 0 {
			live := r.known - r.trimmed
			ratio = fmt.Sprintf("%.2f", float64(live)/float64(r.pending))
		}
		trows = append(trows, table.Row{
			r.name,
			fmt.Sprintf("%d", r.known),
			fmt.Sprintf("%d", r.trimmed),
			fmt.Sprintf("%d", r.pending),
			ratio,
		})
	}
	m.table.SetRows(trows)
}

// scanSegments walks the log directory read-only: it does not go
// through Engine/SegmentManager (which would create segments on
// access), it directly parses the on-disk trim files and scans the data
// file, grounded on the wire format in pkg/logunit without mutating state.
func scanSegments(logDir string, cfg logunit.EngineConfig) ([]segmentRow, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, err
	}

	var rows []segmentRow
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		base := filepath.Join(logDir, strings.TrimSuffix(e.Name(), ".log"))
		known, trimmed, pending, err := logunit.InspectSegment(base, cfg)
		if err != nil {
			continue
		}
		rows = append(rows, segmentRow{name: e.Name(), known: known, trimmed: trimmed, pending: pending})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	return rows, nil
}

// loadDump fetches frame m.dumpFrame from m.dumpSegment, read-only,
// via logunit.DumpFrame.
func (m *model) loadDump() {
	base := filepath.Join(m.logDir, strings.TrimSuffix(m.dumpSegment, ".log"))
	dump, err := logunit.DumpFrame(base, m.dumpFrame, m.cfg)
	m.dump = dump
	m.dumpErr = err
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, isKey := msg.(tea.KeyMsg)

	if isKey && m.mode == modeHexDump {
		switch {
		case key.Matches(keyMsg, keys.Quit):
			return m, tea.Quit
		case key.Matches(keyMsg, keys.Back):
			m.mode = modeTable
			m.dump = nil
			m.dumpErr = nil
			return m, nil
		case key.Matches(keyMsg, keys.NextFrame):
			m.dumpFrame++
			m.loadDump()
			return m, nil
		case key.Matches(keyMsg, keys.PrevFrame):
			if m.dumpFrame > 0 {
				m.dumpFrame--
			}
			m.loadDump()
			return m, nil
		}
		return m, nil
	}

	if isKey {
		switch {
		case key.Matches(keyMsg, keys.Quit):
			return m, tea.Quit
		case key.Matches(keyMsg, keys.Refresh):
			m.refresh()
			return m, nil
		case key.Matches(keyMsg, keys.View):
			if row := m.table.SelectedRow(); len(row) > 0 {
				m.dumpSegment = row[0]
				m.dumpFrame = 0
				m.mode = modeHexDump
				m.loadDump()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.mode == modeHexDump {
		return m.viewHexDump()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("logunit segment inspector — " + m.logDir))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  error: %v", m.err)))
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter hex dump · r refresh · q quit"))
	return b.String()
}

func (m model) viewHexDump() string {
	var b strings.Builder
	b.WriteString(dumpHeaderStyle.Render(fmt.Sprintf("%s — frame %d", m.dumpSegment, m.dumpFrame)))
	b.WriteString("\n\n")

	if m.dumpErr != nil {
		b.WriteString(dumpBodyStyle.Render(warnStyle.Render(fmt.Sprintf("error: %v", m.dumpErr))))
	} else if m.dump != nil {
		summary := fmt.Sprintf("address=%d dataType=%d rank=%d commit=%v payloadLen=%d rawBytes=%d",
			m.dump.Entry.GlobalAddress, m.dump.Entry.DataType, m.dump.Entry.Rank,
			m.dump.Entry.Commit, len(m.dump.Entry.Payload), len(m.dump.Raw))
		b.WriteString(dumpBodyStyle.Render(summary))
		b.WriteString("\n\n")
		b.WriteString(dumpBodyStyle.Render(hex.Dump(m.dump.Raw)))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("n next frame · p prev frame · esc back · q quit"))
	return b.String()
}

func main() {
	logDir := flag.String("log-dir", "./data", "directory holding segment files")
	recordsPerLogFile := flag.Int64("records-per-log-file", 10000, "segment size, must match the running engine")
	flag.Parse()

	cfg := logunit.DefaultEngineConfig(*logDir)
	cfg.RecordsPerLogFile = *recordsPerLogFile

	p := tea.NewProgram(initialModel(*logDir, cfg))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "logunit-tui: %v\n", err)
		os.Exit(1)
	}
}
