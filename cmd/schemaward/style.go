package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	appliedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderUnitState(s migrator.UnitState) string {
	switch s {
	case migrator.StateApplied:
		return appliedStyle.Render(string(s))
	case migrator.StatePending:
		return pendingStyle.Render(string(s))
	default:
		return missingStyle.Render(string(s))
	}
}

func renderObjectState(a schema.Assessment) string {
	switch {
	case a.State == schema.Target:
		return appliedStyle.Render(a.State.String())
	case a.Noop:
		return mutedStyle.Render(a.State.String() + " (skipped)")
	default:
		return pendingStyle.Render(a.State.String())
	}
}
