package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	summaryKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(28)

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

type summaryRow struct {
	key   string
	value string
}

func printSummary(title string, rows []summaryRow) {
	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render(title))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(summaryKeyStyle.Render(row.key))
		b.WriteString(row.value)
	}
	fmt.Println(summaryBoxStyle.Render(b.String()))
}

func countRow(key string, n int) summaryRow {
	return summaryRow{key: key, value: fmt.Sprintf("%d", n)}
}
