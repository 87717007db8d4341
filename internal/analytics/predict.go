package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// PredictionWindow is how many of a category's most recent expenses are
// averaged. Categories with fewer records get no prediction.
const PredictionWindow = 3

// Prediction is the forecast next spend for one expense category.
type Prediction struct {
	Category        string          `json:"category"`
	PredictedAmount decimal.Decimal `json:"predicted_amount"`
}

// Predict forecasts the next expense per category as the average of that
// category's three most recent expenses, rounded half away from zero to two
// decimals. Non-expense records are ignored. Equal dates keep input order.
// The result is sorted by category.
func Predict(records []core.Record) ([]Prediction, error) {
	order, groups, err := groupRecent(records)
	if err != nil {
		return nil, err
	}
	sort.Strings(order)

	window := decimal.NewFromInt(PredictionWindow)
	out := make([]Prediction, 0, len(order))
	for _, category := range order {
		group := groups[category]
		if len(group) < PredictionWindow {
			continue
		}
		avg := TotalAmount(group[:PredictionWindow]).Div(window).Round(2)
		out = append(out, Prediction{Category: category, PredictedAmount: avg})
	}
	return out, nil
}

// groupRecent groups expenses by label, each group sorted newest first.
func groupRecent(records []core.Record) ([]string, map[string][]core.Record, error) {
	var order []string
	groups := make(map[string][]core.Record)
	for _, r := range records {
		if r.Kind != core.KindExpense {
			continue
		}
		if err := checkDate(r); err != nil {
			return nil, nil, err
		}
		if _, ok := groups[r.Label]; !ok {
			order = append(order, r.Label)
		}
		groups[r.Label] = append(groups[r.Label], r)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date.After(group[j].Date.Time)
		})
	}
	return order, groups, nil
}
