package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type SummaryRow struct {
	Label string
	Value string
}

var (
	summaryLabelStyle = lipgloss.NewStyle().Foreground(ColorDim).Width(22)
	summaryValueStyle = lipgloss.NewStyle().Foreground(ColorInk)
	summaryOKStyle    = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
)

// RenderSummary prints aligned label/value rows for the end of a run.
func RenderSummary(title string, rows []SummaryRow) string {
	var b strings.Builder
	b.WriteString(summaryOKStyle.Render(title))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(summaryLabelStyle.Render(row.Label))
		b.WriteString(summaryValueStyle.Render(row.Value))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit && n > -unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit || v <= -unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
