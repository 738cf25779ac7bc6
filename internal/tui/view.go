package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/flock-cli/flock/internal/core"
)

const (
	listWidthMin   = 34
	outputTailRows = 14
)

// noteRenderer is shared across frames; glamour setup is far too slow to
// redo per keystroke.
var noteRenderer = sync.OnceValue(func() *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(60))
	if err != nil {
		return nil
	}
	return r
})

// View renders the whole frame.
func (m Model) View() string {
	state := m.red.State()

	width := m.width
	if width <= 0 {
		width = 120
	}
	height := m.height
	if height <= 0 {
		height = 32
	}

	header := m.viewHeader(width)
	footer := m.viewFooter(width)

	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	if m.pickerOpen {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.viewPicker(width, bodyHeight), footer)
	}
	if m.showLogs {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.viewLogs(width, bodyHeight), footer)
	}

	listWidth := width / 3
	if listWidth < listWidthMin {
		listWidth = listWidthMin
	}
	detailWidth := width - listWidth - 2

	list := listStyle.Width(listWidth).Height(bodyHeight - 2).Render(m.viewAgentList(listWidth - 2))
	detail := detailStyle.Width(detailWidth).Height(bodyHeight - 2).Render(m.viewDetail(detailWidth - 2))
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, detail)

	_ = state
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) viewHeader(width int) string {
	state := m.red.State()
	left := titleStyle.Render("flock") + dimStyle.Render(fmt.Sprintf("  %d agent(s)", len(state.Agents)))

	var right string
	if len(state.Metrics) > 0 {
		last := state.Metrics[len(state.Metrics)-1]
		right = dimStyle.Render(fmt.Sprintf("cpu %.0f%%  mem %.0f%%  ", last.CPUPercent, last.MemPercent))
	}
	right += m.spin.View()

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) viewAgentList(width int) string {
	state := m.red.State()
	if len(state.Agents) == 0 {
		return dimStyle.Render("no agents — press n to create one")
	}

	now := time.Now()
	var sb strings.Builder
	for i, a := range state.Agents {
		symbol := statusStyle(a.Status.Kind).Render(a.Status.Symbol())
		name := a.Name
		if a.ContinueSession {
			name += " ↻"
		}
		row := fmt.Sprintf("%s %-16s %s %s",
			symbol, truncate(name, 16), sparkline(a.ActivityHistory, 10), a.TimeSinceActivity(now))
		if i == state.SelectedIndex {
			row = selectedRowStyle.Render("▸ " + row)
		} else {
			row = "  " + row
		}
		sb.WriteString(truncate(row, width))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) viewDetail(width int) string {
	agent := m.red.State().SelectedAgent()
	if agent == nil {
		return dimStyle.Render("nothing selected")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", titleStyle.Render(agent.Name), statusStyle(agent.Status.Kind).Render(agent.Status.Label()))
	fmt.Fprintf(&sb, "%s %s\n", dimStyle.Render("branch"), agent.Branch)
	fmt.Fprintf(&sb, "%s %s\n", dimStyle.Render("worktree"), agent.WorktreePath)

	git := agent.GitStatus
	clean := "dirty"
	if git.IsClean {
		clean = "clean"
	}
	fmt.Fprintf(&sb, "%s ↑%d ↓%d  main+%d  %s\n",
		dimStyle.Render("git"), git.Ahead, git.Behind, git.DivergenceFromMain, clean)

	if fs := agent.ForgeStatus; fs != nil {
		pipeline := ""
		if fs.PipelineState != "" {
			pipeline = "  ci:" + fs.PipelineState
		}
		fmt.Fprintf(&sb, "%s #%d %s%s\n", dimStyle.Render(fs.Provider), fs.Number, fs.State, pipeline)
	}

	if agent.PmTaskLink.IsLinked() {
		fmt.Fprintf(&sb, "%s %s\n", dimStyle.Render("task"), agent.PmTaskLink.FormatShort())
	}
	if agent.HasChecklist {
		fmt.Fprintf(&sb, "%s %d/%d\n", dimStyle.Render("checklist"), agent.ChecklistDone, agent.ChecklistTotal)
	}

	if agent.CustomNote != "" {
		sb.WriteString("\n")
		if r := noteRenderer(); r != nil {
			if rendered, err := r.Render(agent.CustomNote); err == nil {
				sb.WriteString(strings.TrimSpace(rendered))
				sb.WriteString("\n")
			} else {
				sb.WriteString(agent.CustomNote + "\n")
			}
		} else {
			sb.WriteString(agent.CustomNote + "\n")
		}
	}

	sb.WriteString("\n" + dimStyle.Render(strings.Repeat("─", min(width, 40))) + "\n")
	tail := agent.OutputBuffer
	if len(tail) > outputTailRows {
		tail = tail[len(tail)-outputTailRows:]
	}
	for _, line := range tail {
		sb.WriteString(truncate(line, width))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) viewPicker(width, height int) string {
	var sb strings.Builder
	sb.WriteString(inputLabelStyle.Render("assign task") + "  " + m.picker.FilterView() + "\n\n")

	if !m.picker.Loaded() {
		sb.WriteString(dimStyle.Render("loading tasks… " + m.spin.View()))
	} else {
		tasks, cursor := m.picker.Visible()
		if len(tasks) == 0 {
			sb.WriteString(dimStyle.Render("no matching tasks"))
		}
		for i, task := range tasks {
			row := fmt.Sprintf("%-40s %s", truncate(task.Name, 40), dimStyle.Render(task.StatusName))
			if task.IsSubtask {
				row = "  ↳ " + row
			}
			if i == cursor {
				row = selectedRowStyle.Render("▸ " + row)
			} else {
				row = "  " + row
			}
			sb.WriteString(truncate(row, width-4))
			sb.WriteString("\n")
		}
	}
	return detailStyle.Width(width - 2).Height(height - 2).Render(sb.String())
}

func (m Model) viewLogs(width, height int) string {
	state := m.red.State()
	var sb strings.Builder
	for _, entry := range state.Logs {
		line := fmt.Sprintf("%s %-5s %s",
			entry.Time.Format("15:04:05"), strings.ToUpper(string(entry.Level)), entry.Message)
		sb.WriteString(truncate(line, width-4))
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		sb.WriteString(dimStyle.Render("no log entries yet"))
	}
	return detailStyle.Width(width - 2).Height(height - 2).Render(sb.String())
}

func (m Model) viewFooter(width int) string {
	state := m.red.State()

	if state.InputMode != core.InputModeNone {
		label := map[core.InputMode]string{
			core.InputModeNewAgent:   "new agent",
			core.InputModeNote:       "note",
			core.InputModeAssignTask: "assign task",
		}[state.InputMode]
		line := inputLabelStyle.Render(label) + "  " + m.input.View()
		if state.InputError != "" {
			line += "  " + errorTextStyle.Render(state.InputError)
		}
		return truncate(line, width)
	}

	if state.ErrorMessage != "" {
		return truncate(toastErrorStyle.Render(state.ErrorMessage), width)
	}

	help := "j/k move · n new · enter attach · d delete · R restart · N note · t/T task · c resume · m merge · f fetch · y copy · L logs · r refresh · q quit"
	return truncate(helpStyle.Render(help), width)
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
