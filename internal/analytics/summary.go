package analytics

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Summary is the dashboard view over one owner's records.
type Summary struct {
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	TotalSavings      decimal.Decimal `json:"total_savings"`
	Net               decimal.Decimal `json:"net"`
	AverageDailySpend decimal.Decimal `json:"average_daily_spend"`
	HighestCategory   *CategoryAmount `json:"highest_category"`
	ExpenseCount      int             `json:"expense_count"`
	IncomeCount       int             `json:"income_count"`
	SavingCount       int             `json:"saving_count"`
}

// Summarize computes totals for a mixed-kind record list.
func Summarize(records []core.Record) (Summary, error) {
	expenses := core.FilterKind(records, core.KindExpense)
	income := core.FilterKind(records, core.KindIncome)
	savings := core.FilterKind(records, core.KindSaving)

	avg, err := AverageDailySpend(expenses)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		TotalIncome:       TotalAmount(income),
		TotalExpenses:     TotalAmount(expenses),
		TotalSavings:      TotalAmount(savings),
		Net:               NetTotal(income, expenses),
		AverageDailySpend: avg,
		ExpenseCount:      len(expenses),
		IncomeCount:       len(income),
		SavingCount:       len(savings),
	}
	if top, ok := HighestCategory(expenses); ok {
		s.HighestCategory = &top
	}
	return s, nil
}
