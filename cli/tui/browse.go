package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arca-io/arca/controller"
	"github.com/arca-io/arca/types"
)

// treeRow is one visible row of the archive tree.
type treeRow struct {
	node  *types.ArchiveFileNode
	depth int
}

// visibleRows flattens the tree in display order, descending only into
// directories for which expanded reports true. A nil expanded func descends
// into everything.
func visibleRows(nodes []*types.ArchiveFileNode, expanded func(path string) bool) []treeRow {
	var rows []treeRow
	var walk func(nodes []*types.ArchiveFileNode, depth int)
	walk = func(nodes []*types.ArchiveFileNode, depth int) {
		for _, n := range nodes {
			rows = append(rows, treeRow{node: n, depth: depth})
			if n.IsDirectory && (expanded == nil || expanded(n.Path)) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
	return rows
}

// treeLines renders the visible rows as styled lines. cursor is the
// highlighted row index, or -1 for none.
func treeLines(nodes []*types.ArchiveFileNode, expanded func(path string) bool, cursor int) []string {
	rows := visibleRows(nodes, expanded)
	lines := make([]string, 0, len(rows))
	for i, r := range rows {
		indent := strings.Repeat("  ", r.depth)
		var marker, name string
		if r.node.IsDirectory {
			marker = "▾ "
			if expanded != nil && !expanded(r.node.Path) {
				marker = "▸ "
			}
			name = DirStyle.Render(r.node.Name + "/")
		} else {
			marker = "  "
			name = ValueStyle.Render(r.node.Name) + "  " +
				HelpStyle.MarginTop(0).Render(humanSize(r.node.Size))
		}
		line := indent + marker + name
		if i == cursor {
			line = CursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return lines
}

// BrowseModel is the interactive archive tree browser. It is a thin view
// over a session controller: every key that means something is translated
// into a controller call and the returned state snapshot replaces the old one.
type BrowseModel struct {
	ctx      context.Context
	ctrl     *controller.Controller
	state    controller.State
	cursor   int
	width    int
	height   int
	input    textinput.Model
	quitting bool
}

// NewBrowseModel creates a browser over an already-selected archive.
func NewBrowseModel(ctx context.Context, ctrl *controller.Controller) BrowseModel {
	input := textinput.New()
	input.Placeholder = "password"
	input.EchoMode = textinput.EchoPassword
	input.Focus()

	return BrowseModel{
		ctx:   ctx,
		ctrl:  ctrl,
		state: ctrl.State(),
		input: input,
	}
}

// Init implements tea.Model.
func (m BrowseModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// While the password prompt is open, printable keys belong to the
		// input field. Only ctrl+c force-quits.
		if m.state.Phase == controller.PhasePasswordRequired {
			if msg.String() == "ctrl+c" {
				m.quitting = true
				return m, tea.Quit
			}
			return m.updatePrompt(msg)
		}
		if key.Matches(msg, browseKeys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.state.Phase {
		case controller.PhaseError:
			if key.Matches(msg, browseKeys.Dismiss) {
				m.state = m.ctrl.DismissError()
			}
			return m, nil
		default:
			return m.updateTree(msg)
		}
	}

	return m, nil
}

func (m BrowseModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, browseKeys.Submit):
		m.state = m.ctrl.SubmitPassword(m.ctx, m.input.Value())
		m.input.Reset()
		return m, nil
	case key.Matches(msg, browseKeys.Dismiss):
		m.state = m.ctrl.DismissPassword(m.ctx)
		m.input.Reset()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m BrowseModel) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := visibleRows(m.state.Files, m.state.Expanded.Has)
	switch {
	case key.Matches(msg, browseKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, browseKeys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, browseKeys.Toggle):
		if m.cursor < len(rows) && rows[m.cursor].node.IsDirectory {
			m.state = m.ctrl.ToggleExpand(rows[m.cursor].node.Path)
			m.clampCursor()
		}
	case key.Matches(msg, browseKeys.Select):
		if m.cursor < len(rows) {
			m.state = m.ctrl.ToggleSelect(rows[m.cursor].node.Path)
		}
	}
	return m, nil
}

func (m *BrowseModel) clampCursor() {
	rows := visibleRows(m.state.Files, m.state.Expanded.Has)
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View implements tea.Model.
func (m BrowseModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.state.FileName))
	b.WriteString("  ")
	b.WriteString(PhaseStyle(string(m.state.Phase)).Render(string(m.state.Phase)))
	b.WriteString("\n\n")

	switch m.state.Phase {
	case controller.PhasePasswordRequired:
		b.WriteString(m.viewPrompt())
	case controller.PhaseError:
		b.WriteString(ErrorStyle.Render(m.state.ErrMsg))
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("esc dismiss · q quit"))
	case controller.PhaseLoading:
		b.WriteString(WarningStyle.Render("Reading archive..."))
	default:
		b.WriteString(m.viewTree())
	}

	return b.String()
}

func (m BrowseModel) viewPrompt() string {
	p := m.state.Pending
	var b strings.Builder
	if p != nil {
		b.WriteString(ValueStyle.Render(p.Message))
		b.WriteString("\n")
		if p.Attempts > 1 {
			b.WriteString(WarningStyle.Render(fmt.Sprintf("attempt %d", p.Attempts)))
			b.WriteString("\n")
		}
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("enter submit · esc cancel · q quit"))
	return BoxStyle.Render(b.String())
}

func (m BrowseModel) viewTree() string {
	var b strings.Builder
	for _, line := range treeLines(m.state.Files, m.state.Expanded.Has, m.cursor) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.state.Stats != nil {
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render(fmt.Sprintf("%d files · %s · %d selected",
			m.state.Stats.TotalFiles, humanSize(m.state.Stats.TotalSize), m.state.Selected.Len())))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("↑/↓ move · enter expand · space select · q quit"))
	return b.String()
}

// browseKeyMap defines key bindings for the tree browser.
type browseKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Select  key.Binding
	Submit  key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

var browseKeys = browseKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("enter", "l"),
		key.WithHelp("enter", "expand/collapse"),
	),
	Select: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "select"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunBrowseTUI runs the interactive tree browser over a controller whose
// archive has already been selected.
func RunBrowseTUI(ctx context.Context, ctrl *controller.Controller) error {
	model := NewBrowseModel(ctx, ctrl)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
