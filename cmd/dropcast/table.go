package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxCellWidth keeps long captions and error details from wrapping the
// terminal.
const maxCellWidth = 48

// renderTable draws a rounded table. Short rows are padded with blanks;
// columns without an entry in aligns are left aligned.
func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] != text.AlignDefault {
			align = aligns[i]
		}
		configs[i] = table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			WidthMax:         maxCellWidth,
			WidthMaxEnforcer: truncateCell,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render() + "\n"
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

func truncateCell(col string, maxLen int) string {
	if text.RuneWidthWithoutEscSequences(col) <= maxLen {
		return col
	}
	return text.Trim(col, maxLen-1) + "…"
}
