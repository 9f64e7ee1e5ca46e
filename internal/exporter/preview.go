package exporter

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
)

// RenderPreview writes the rows as a bordered table followed by a one-line
// summary of how many of total rows are shown.
func RenderPreview(out io.Writer, headers []string, rows [][]string, total int) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	if _, err := fmt.Fprintln(out, t.String()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d of %d rows, %d columns\n", len(rows), total, len(headers))
	return err
}
