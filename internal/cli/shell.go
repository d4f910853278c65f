package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/client"
)

// shellRows is how many equipment rows the rows pane shows.
const shellRows = 10

type shellAPI interface {
	Datasets(ctx context.Context) ([]client.Dataset, error)
	Summary(ctx context.Context, datasetID int64) (client.Summary, error)
	Equipment(ctx context.Context, datasetID int64) ([]client.Equipment, error)
	Upload(ctx context.Context, path, name string) (client.Dataset, error)
	Report(ctx context.Context, datasetID int64) (client.Report, error)
}

func newShellCommand(g *globals) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Browse datasets interactively",
		Long: `Opens an interactive view of the retained datasets. The newest dataset is
selected on start, select another with enter to load its summary, type
distribution and rows. Logs are discarded unless --log-file is set.

Keys: enter select, u upload, p save PDF, c write charts, r refresh, q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closeLog, err := g.redirectLogs(logFile)
			if err != nil {
				return err
			}
			defer closeLog()

			c, err := g.client()
			if err != nil {
				return err
			}

			p := tea.NewProgram(newShellModel(cmd.Context(), c), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write client logs to this file while the shell runs")

	return cmd
}

// redirectLogs points the client logger away from the terminal the shell
// draws on: into path when set, otherwise nowhere.
func (g *globals) redirectLogs(path string) (func(), error) {
	level := slog.LevelInfo
	if g.v.GetBool("verbose") {
		level = slog.LevelDebug
	}

	if path == "" {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return func() {}, nil
	}

	f, err := tea.LogToFile(path, "equipctl")
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	g.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))

	return func() { _ = f.Close() }, nil
}

type (
	datasetsMsg struct {
		datasets []client.Dataset
		err      error
	}
	// summaryMsg and rowsMsg carry the dataset they were requested for so a
	// late answer for an earlier selection can be told apart.
	summaryMsg struct {
		datasetID int64
		summary   client.Summary
		err       error
	}
	rowsMsg struct {
		datasetID int64
		rows      []client.Equipment
		err       error
	}
	uploadedMsg struct {
		dataset client.Dataset
		err     error
	}
	savedMsg struct {
		paths []string
		err   error
	}
)

type promptKind int

const (
	promptNone promptKind = iota
	promptUpload
	promptPDF
	promptCharts
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Padding(0, 1)
)

type shellModel struct {
	ctx   context.Context
	api   shellAPI
	table table.Model
	input textinput.Model

	prompt   promptKind
	datasets []client.Dataset
	selected int64

	// panes; nil until the selected dataset answered
	summary *client.Summary
	rows    []client.Equipment
	hasRows bool

	status string
	err    error
}

func newShellModel(ctx context.Context, api shellAPI) shellModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 20},
			{Title: "Name", Width: 24},
			{Title: "File", Width: 20},
			{Title: "Rows", Width: 6},
			{Title: "Uploaded", Width: 19},
		}),
		table.WithFocused(true),
		table.WithHeight(6),
	)

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 60

	return shellModel{
		ctx:   ctx,
		api:   api,
		table: t,
		input: ti,
	}
}

func (m shellModel) Init() tea.Cmd {
	return m.loadDatasets()
}

func (m shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case datasetsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.datasets = msg.datasets
		m.table.SetRows(datasetRows(msg.datasets))
		if m.selected == 0 && len(msg.datasets) > 0 {
			cmd := m.selectDataset(msg.datasets[0].ID)
			return m, cmd
		}
		return m, nil

	case summaryMsg:
		if msg.datasetID != m.selected {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		summary := msg.summary
		m.summary = &summary
		return m, nil

	case rowsMsg:
		if msg.datasetID != m.selected {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rows = msg.rows
		m.hasRows = true
		return m, nil

	case uploadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = fmt.Sprintf("Uploaded %q (%d rows)", msg.dataset.Name, msg.dataset.TotalCount)
		load := m.selectDataset(msg.dataset.ID)
		return m, tea.Batch(m.loadDatasets(), load)

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = "Saved " + strings.Join(msg.paths, ", ")
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m shellModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// the error banner blocks until dismissed
	if m.err != nil {
		m.err = nil
		return m, nil
	}

	if m.prompt != promptNone {
		switch msg.String() {
		case "esc":
			m.closePrompt()
			return m, nil
		case "enter":
			kind, value := m.prompt, strings.TrimSpace(m.input.Value())
			m.closePrompt()
			if value == "" {
				return m, nil
			}
			return m, m.submit(kind, value)
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "enter":
		row := m.table.SelectedRow()
		if row == nil {
			return m, nil
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return m, nil
		}
		cmd := m.selectDataset(id)
		return m, cmd
	case "r":
		m.status = ""
		return m, m.loadDatasets()
	case "u":
		cmd := m.openPrompt(promptUpload, "CSV file to upload", "")
		return m, cmd
	case "p":
		if m.selected == 0 {
			m.status = "Select a dataset first"
			return m, nil
		}
		cmd := m.openPrompt(promptPDF, "Save report as", fmt.Sprintf("equipment_report_%d.pdf", m.selected))
		return m, cmd
	case "c":
		if m.summary == nil || !m.hasRows {
			m.status = "Select a dataset and wait for it to load"
			return m, nil
		}
		cmd := m.openPrompt(promptCharts, "Write charts to directory", "charts")
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// selectDataset clears the panes and fires the summary and rows fetches as
// two independent commands.
func (m *shellModel) selectDataset(id int64) tea.Cmd {
	m.selected = id
	m.summary = nil
	m.rows = nil
	m.hasRows = false

	ctx, api := m.ctx, m.api
	return tea.Batch(
		func() tea.Msg {
			summary, err := api.Summary(ctx, id)
			return summaryMsg{datasetID: id, summary: summary, err: err}
		},
		func() tea.Msg {
			rows, err := api.Equipment(ctx, id)
			return rowsMsg{datasetID: id, rows: rows, err: err}
		},
	)
}

func (m shellModel) loadDatasets() tea.Cmd {
	ctx, api := m.ctx, m.api
	return func() tea.Msg {
		datasets, err := api.Datasets(ctx)
		return datasetsMsg{datasets: datasets, err: err}
	}
}

func (m *shellModel) openPrompt(kind promptKind, placeholder, value string) tea.Cmd {
	m.prompt = kind
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.table.Blur()
	return m.input.Focus()
}

func (m *shellModel) closePrompt() {
	m.prompt = promptNone
	m.input.Blur()
	m.input.Reset()
	m.table.Focus()
}

func (m shellModel) submit(kind promptKind, value string) tea.Cmd {
	ctx, api, id := m.ctx, m.api, m.selected

	switch kind {
	case promptUpload:
		return func() tea.Msg {
			dataset, err := api.Upload(ctx, value, "")
			return uploadedMsg{dataset: dataset, err: err}
		}
	case promptPDF:
		return func() tea.Msg {
			report, err := api.Report(ctx, id)
			if err != nil {
				return savedMsg{err: err}
			}
			if err := writeFile(value, report.Content); err != nil {
				return savedMsg{err: err}
			}
			return savedMsg{paths: []string{value}}
		}
	case promptCharts:
		if m.summary == nil || !m.hasRows {
			return nil
		}
		summary, rows := *m.summary, m.rows
		return func() tea.Msg {
			paths, err := client.WriteCharts(value, summary, rows)
			return savedMsg{paths: paths, err: err}
		}
	}

	return nil
}

func (m shellModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Chemical Equipment Datasets"))
	b.WriteString("\n")
	b.WriteString(paneStyle.Render(m.table.View()))
	b.WriteString("\n")

	if m.selected != 0 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			paneStyle.Render(m.summaryView()),
			paneStyle.Render(m.distributionView()),
		))
		b.WriteString("\n")
		b.WriteString(paneStyle.Render(m.rowsView()))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString(mutedStyle.Render("  press any key to dismiss"))
	case m.prompt != promptNone:
		b.WriteString(m.input.View())
		b.WriteString(mutedStyle.Render("  enter confirm, esc cancel"))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter select • u upload • p pdf • c charts • r refresh • q quit"))

	return b.String()
}

func (m shellModel) summaryView() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Summary"))
	b.WriteString("\n")

	if m.summary == nil {
		b.WriteString(mutedStyle.Render("loading..."))
		return b.String()
	}

	s := m.summary
	fmt.Fprintf(&b, "%s\n%d rows\n\n", s.DatasetName, s.TotalCount)
	for _, p := range parameters {
		avg, ok := s.Average(p)
		value := "n/a"
		if ok {
			value = strconv.FormatFloat(avg, 'f', 2, 64)
		}
		fmt.Fprintf(&b, "%-12s %10s\n", p, value)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m shellModel) distributionView() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Types"))
	b.WriteString("\n")

	if m.summary == nil {
		b.WriteString(mutedStyle.Render("loading..."))
		return b.String()
	}

	types := make([]string, 0, len(m.summary.TypeDistribution))
	for t := range m.summary.TypeDistribution {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		fmt.Fprintf(&b, "%-16s %5d\n", truncate(t, 16), m.summary.TypeDistribution[t])
	}
	if len(types) == 0 {
		b.WriteString(mutedStyle.Render("no rows"))
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m shellModel) rowsView() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Rows"))
	b.WriteString("\n")

	if !m.hasRows {
		b.WriteString(mutedStyle.Render("loading..."))
		return b.String()
	}

	fmt.Fprintf(&b, "%-24s %-16s %10s %10s %12s\n", "Name", "Type", "Flowrate", "Pressure", "Temperature")
	for i, r := range m.rows {
		if i == shellRows {
			fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("... and %d more (equipctl rows %d)", len(m.rows)-shellRows, m.selected)))
			break
		}
		fmt.Fprintf(&b, "%-24s %-16s %10s %10s %12s\n", truncate(r.Name, 24), truncate(r.Type, 16),
			formatValue(r.Flowrate), formatValue(r.Pressure), formatValue(r.Temperature))
	}

	return strings.TrimRight(b.String(), "\n")
}

func datasetRows(datasets []client.Dataset) []table.Row {
	rows := make([]table.Row, 0, len(datasets))
	for _, d := range datasets {
		rows = append(rows, table.Row{
			strconv.FormatInt(d.ID, 10),
			d.Name,
			d.FileName,
			strconv.Itoa(d.TotalCount),
			formatTime(d.UploadedAt),
		})
	}
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
