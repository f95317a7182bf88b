package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/format/table"
	"github.com/Majr25/SpriteEdit/internal/save"
)

func (m *Model) handleReviewKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "enter", "y":
		return m.confirmSave()
	case "esc", "n", "q":
		m.plan = nil
		m.setMode(ModeBrowse)
		m.report(nil, "Save cancelled")
		return nil
	}
	var cmd tea.Cmd
	m.review, cmd = m.review.Update(key)
	return cmd
}

func (m *Model) handleMergeKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "ctrl+s":
		return m.resolveConflict()
	case "ctrl+y":
		if m.conflict != nil {
			m.report(m.clipboard(m.conflict.Mine), "Copied your version to the clipboard")
		}
		return nil
	case "ctrl+o":
		if m.conflict != nil {
			m.merge.SetValue(m.conflict.Current)
			m.setInfo("Loaded the current page text")
		}
		return nil
	case "esc":
		m.abandonConflict()
		return nil
	}
	var cmd tea.Cmd
	m.merge, cmd = m.merge.Update(key)
	return cmd
}

// reviewContent summarises a plan above the page diff.
func (m *Model) reviewContent(plan *save.Plan) string {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	rows := [][]string{
		{"Summary", m.summary},
		{"Names changed", yesNo(plan.NamesModified)},
		{"Sheet changed", yesNo(plan.SheetModified)},
		{"Sections", fmt.Sprint(len(plan.Table.Sections))},
		{"Names", fmt.Sprint(len(plan.Table.IDs))},
	}
	if plan.Sheet != nil {
		b := plan.Sheet.Bounds()
		rows = append(rows, []string{"Sheet size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy())})
	}
	var sb strings.Builder
	for _, line := range table.Format(rows, []table.Alignment{table.AlignLeft, table.AlignLeft}) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	if plan.DiffErr != nil {
		sb.WriteString(styles.Warning.Render("Could not load the diff: " + plan.DiffErr.Error()))
		return sb.String()
	}
	sb.WriteString(renderDiff(parseDiff(plan.Diff)))
	return sb.String()
}

func (m *Model) duplicatesContent() string {
	rows := make([][]string, 0, len(m.duplicates))
	for _, name := range m.duplicates {
		holders := m.session.Holders(name)
		rows = append(rows, []string{name, fmt.Sprintf("used %d times", len(holders))})
	}
	lines := table.Format(rows, []table.Alignment{table.AlignLeft, table.AlignRight})
	return strings.Join(lines, "\n")
}
