package report

import "github.com/charmbracelet/lipgloss"

var (
	incomeColor  = lipgloss.Color("#4ECDC4")
	expenseColor = lipgloss.Color("#FF6B6B")
	savingColor  = lipgloss.Color("#FFE66D")
	subtleColor  = lipgloss.Color("#666666")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(expenseColor).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#333"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtleColor).
			Padding(0, 1)

	labelStyle  = lipgloss.NewStyle().Width(20)
	amountStyle = lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
	subtleStyle = lipgloss.NewStyle().Foreground(subtleColor)
	barStyle    = lipgloss.NewStyle().Foreground(expenseColor)
)
