package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arca-io/arca/types"
)

// ArchiveView is the payload of the inspect command. The same struct feeds
// json/table/yaml rendering and the static TUI view.
type ArchiveView struct {
	FileName  string                   `json:"file_name" yaml:"file_name"`
	Format    types.Format             `json:"format" yaml:"format"`
	Engine    string                   `json:"engine" yaml:"engine"`
	Encrypted bool                     `json:"encrypted" yaml:"encrypted"`
	Warnings  []string                 `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Files     []*types.ArchiveFileNode `json:"files" yaml:"files"`
	Stats     *types.ArchiveStats      `json:"stats" yaml:"stats"`
}

// StatsView is the payload of the stats command.
type StatsView struct {
	FileName         string       `json:"file_name" yaml:"file_name"`
	Format           types.Format `json:"format" yaml:"format"`
	TotalFiles       int          `json:"total_files" yaml:"total_files"`
	TotalSize        int64        `json:"total_size" yaml:"total_size"`
	TotalCompressed  *int64       `json:"total_compressed,omitempty" yaml:"total_compressed,omitempty"`
	CompressionRatio *float64     `json:"compression_ratio,omitempty" yaml:"compression_ratio,omitempty"`
}

// StaticModel is a Bubble Tea model for the read-only inspect and stats views.
type StaticModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStaticModel creates a model for a static view.
func NewStaticModel(viewType string, data any) StaticModel {
	return StaticModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StaticModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StaticModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, staticKeys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StaticModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_archive":
		content = m.renderInspectArchive()
	case "stats_archive":
		content = m.renderStatsArchive()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StaticModel) renderInspectArchive() string {
	data, ok := m.data.(*ArchiveView)
	if !ok {
		return "Invalid data type for inspect_archive"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Archive Contents"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"File", data.FileName},
		{"Format", string(data.Format)},
		{"Engine", data.Engine},
		{"Encrypted", fmt.Sprintf("%t", data.Encrypted)},
	}
	if data.Stats != nil {
		rows = append(rows,
			[]string{"Files", fmt.Sprintf("%d", data.Stats.TotalFiles)},
			[]string{"Size", humanSize(data.Stats.TotalSize)})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		b.WriteString(fmt.Sprintf("%s %s\n", label, ValueStyle.Render(row[1])))
	}

	b.WriteString("\n")
	for _, line := range treeLines(data.Files, nil, -1) {
		b.WriteString(line)
		b.WriteString("\n")
	}

	for _, w := range data.Warnings {
		b.WriteString(WarningStyle.Render("warning: " + w))
		b.WriteString("\n")
	}

	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m StatsView) ratioLabel() string {
	if m.CompressionRatio == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *m.CompressionRatio*100)
}

func (m StaticModel) renderStatsArchive() string {
	data, ok := m.data.(*StatsView)
	if !ok {
		return "Invalid data type for stats_archive"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Archive Statistics"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("File:"), ValueStyle.Render(data.FileName)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Format:"), ValueStyle.Render(string(data.Format))))

	compressed := "n/a"
	if data.TotalCompressed != nil {
		compressed = humanSize(*data.TotalCompressed)
	}

	boxes := []string{
		m.renderStatBox("Files", fmt.Sprintf("%d", data.TotalFiles), highlightColor),
		m.renderStatBox("Size", humanSize(data.TotalSize), successColor),
		m.renderStatBox("Stored", compressed, warningColor),
		m.renderStatBox("Ratio", data.ratioLabel(), primaryColor),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	return b.String()
}

func (m StaticModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// staticKeys defines key bindings for static views.
var staticKeys = struct {
	Quit key.Binding
}{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunStaticTUI runs a static inspect or stats view.
func RunStaticTUI(viewType string, data any) error {
	model := NewStaticModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatic renders a static view without full TUI (for fallback).
func RenderStatic(viewType string, data any) string {
	model := NewStaticModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}

// humanSize formats a byte count for display.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
