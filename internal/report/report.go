// Package report renders a ledger overview for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

// barWidth is the length of a 100% breakdown bar.
const barWidth = 30

// Report is everything Render needs for one user.
type Report struct {
	Username    string
	Summary     analytics.Summary
	Breakdown   []analytics.CategoryTotal
	Monthly     analytics.MonthlyBreakdown
	Predictions []analytics.Prediction
}

// Render lays the report out as styled text.
func Render(r Report) string {
	sections := []string{
		titleStyle.Render("Ledger report for " + r.Username),
		renderTotals(r.Summary),
		renderBreakdown(r.Breakdown),
		renderMonthly(r.Monthly),
		renderPredictions(r.Predictions),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func line(label string, amount decimal.Decimal, color lipgloss.Color) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label),
		amountStyle.Foreground(color).Render(core.FormatAmount(amount)))
}

func renderTotals(s analytics.Summary) string {
	rows := []string{
		line("Total income", s.TotalIncome, incomeColor),
		line("Total expenses", s.TotalExpenses, expenseColor),
		line("Total savings", s.TotalSavings, savingColor),
		line("Net", s.Net, netColor(s.Net)),
		line("Avg daily spend", s.AverageDailySpend, expenseColor),
	}
	if s.HighestCategory != nil {
		rows = append(rows, labelStyle.Render("Top category")+
			fmt.Sprintf("%s (%s)", s.HighestCategory.Label, core.FormatAmount(s.HighestCategory.Amount)))
	}
	rows = append(rows, subtleStyle.Render(fmt.Sprintf("%d expenses, %d income, %d savings",
		s.ExpenseCount, s.IncomeCount, s.SavingCount)))
	return boxStyle.Render(strings.Join(rows, "\n"))
}

func netColor(net decimal.Decimal) lipgloss.Color {
	if net.IsNegative() {
		return expenseColor
	}
	return incomeColor
}

func renderBreakdown(totals []analytics.CategoryTotal) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Expenses by category"))
	b.WriteString("\n")
	if len(totals) == 0 {
		b.WriteString(subtleStyle.Render("no expenses recorded"))
		return b.String()
	}
	for _, t := range totals {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(t.Label),
			amountStyle.Render(core.FormatAmount(t.Total)),
			" ",
			barStyle.Render(bar(t.Percent)),
			subtleStyle.Render(fmt.Sprintf(" %s%%", t.Percent.StringFixed(1)))))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// bar scales a 0..100 percentage to barWidth blocks.
func bar(percent decimal.Decimal) string {
	n := int(percent.Mul(decimal.NewFromInt(barWidth)).Div(decimal.NewFromInt(100)).Round(0).IntPart())
	n = min(max(n, 0), barWidth)
	return strings.Repeat("█", n)
}

func renderMonthly(m analytics.MonthlyBreakdown) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Monthly expenses"))
	b.WriteString("\n")
	if len(m.Months) == 0 {
		b.WriteString(subtleStyle.Render("no months to show"))
		return b.String()
	}
	for _, month := range m.Months {
		total := decimal.Zero
		for _, v := range month.Totals {
			total = total.Add(v)
		}
		b.WriteString(labelStyle.Render(month.Key) + amountStyle.Render(core.FormatAmount(total)))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderPredictions(preds []analytics.Prediction) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Predicted next expense"))
	b.WriteString("\n")
	if len(preds) == 0 {
		b.WriteString(subtleStyle.Render(fmt.Sprintf("need %d expenses in a category to predict", analytics.PredictionWindow)))
		return b.String()
	}
	for _, p := range preds {
		b.WriteString(labelStyle.Render(p.Category) + amountStyle.Render(core.FormatAmount(p.PredictedAmount)))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
