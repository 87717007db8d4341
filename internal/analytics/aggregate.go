package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var hundred = decimal.NewFromInt(100)

// CategoryTotal is one label's share of a group of records.
type CategoryTotal struct {
	Label   string          `json:"label"`
	Total   decimal.Decimal `json:"total"`
	Percent decimal.Decimal `json:"percent"`
}

// CategoryAmount is a label paired with its summed amount.
type CategoryAmount struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

func weight(r core.Record) decimal.Decimal {
	if r.Amount.IsPositive() {
		return r.Amount
	}
	return decimal.Zero
}

// TotalAmount sums the amounts of records. The result is independent of order.
func TotalAmount(records []core.Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(weight(r))
	}
	return total
}

// NetTotal is income minus expenses.
func NetTotal(income, expenses []core.Record) decimal.Decimal {
	return TotalAmount(income).Sub(TotalAmount(expenses))
}

// GroupByLabel sums amounts per distinct label. Labels are compared exactly.
func GroupByLabel(records []core.Record) map[string]decimal.Decimal {
	groups := make(map[string]decimal.Decimal)
	for _, r := range records {
		groups[r.Label] = groups[r.Label].Add(weight(r))
	}
	return groups
}

// groupOrdered sums per label and returns labels in first-seen order.
func groupOrdered(records []core.Record) ([]string, map[string]decimal.Decimal) {
	var order []string
	groups := make(map[string]decimal.Decimal)
	for _, r := range records {
		if _, ok := groups[r.Label]; !ok {
			order = append(order, r.Label)
		}
		groups[r.Label] = groups[r.Label].Add(weight(r))
	}
	return order, groups
}

// CategoryBreakdown returns per-label totals with their percentage of the
// group sum, in first-seen label order. Percentages are unrounded; when the
// group sum is zero every percent is zero.
func CategoryBreakdown(records []core.Record) []CategoryTotal {
	order, groups := groupOrdered(records)
	sum := decimal.Zero
	for _, total := range groups {
		sum = sum.Add(total)
	}
	out := make([]CategoryTotal, 0, len(order))
	for _, label := range order {
		pct := decimal.Zero
		if !sum.IsZero() {
			pct = groups[label].Div(sum).Mul(hundred)
		}
		out = append(out, CategoryTotal{Label: label, Total: groups[label], Percent: pct})
	}
	return out
}

// HighestCategory returns the label with the largest sum. On equal sums the
// label encountered first in records wins. ok is false for empty input.
func HighestCategory(records []core.Record) (best CategoryAmount, ok bool) {
	order, groups := groupOrdered(records)
	for _, label := range order {
		if !ok || groups[label].GreaterThan(best.Amount) {
			best = CategoryAmount{Label: label, Amount: groups[label]}
			ok = true
		}
	}
	return best, ok
}

// DaySpan is the inclusive number of calendar days between the earliest and
// latest record, never less than one.
func DaySpan(records []core.Record) (int, error) {
	if len(records) == 0 {
		return 1, nil
	}
	var first, last time.Time
	for i, r := range records {
		if err := checkDate(r); err != nil {
			return 0, err
		}
		if i == 0 || r.Date.Before(first) {
			first = r.Date.Time
		}
		if i == 0 || r.Date.After(last) {
			last = r.Date.Time
		}
	}
	days := int(math.Ceil(last.Sub(first).Hours()/24)) + 1
	return max(1, days), nil
}

// AverageDailySpend divides the total by the inclusive day span of records.
func AverageDailySpend(expenses []core.Record) (decimal.Decimal, error) {
	if len(expenses) == 0 {
		return decimal.Zero, nil
	}
	days, err := DaySpan(expenses)
	if err != nil {
		return decimal.Zero, err
	}
	return TotalAmount(expenses).Div(decimal.NewFromInt(int64(days))), nil
}

// MonthBucket holds per-label totals for one calendar month.
type MonthBucket struct {
	Key    string                     `json:"key"`
	Year   int                        `json:"year"`
	Month  time.Month                 `json:"month"`
	Totals map[string]decimal.Decimal `json:"totals"`
}

// MonthlyBreakdown is a chronologically ordered series of month buckets.
type MonthlyBreakdown struct {
	Labels []string      `json:"labels"`
	Months []MonthBucket `json:"months"`
}

// MonthKey formats a bucket key such as "Jan 2026".
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", month.String()[:3], year)
}

// Monthly buckets records by the calendar month of their own date, then by
// label. When labels is nil every label present is reported; otherwise only
// the given labels are, each zero-filled in every month. Buckets are sorted
// chronologically, so "Jan 2026" follows "Dec 2025".
func Monthly(records []core.Record, labels []string) (MonthlyBreakdown, error) {
	type ym struct {
		year  int
		month time.Month
	}
	wanted := make(map[string]bool, len(labels))
	for _, l := range labels {
		wanted[l] = true
	}
	seen := make(map[string]bool)
	buckets := make(map[ym]map[string]decimal.Decimal)
	for _, r := range records {
		if err := checkDate(r); err != nil {
			return MonthlyBreakdown{}, err
		}
		if labels != nil && !wanted[r.Label] {
			continue
		}
		seen[r.Label] = true
		k := ym{r.Date.Year(), r.Date.Month()}
		if buckets[k] == nil {
			buckets[k] = make(map[string]decimal.Decimal)
		}
		buckets[k][r.Label] = buckets[k][r.Label].Add(weight(r))
	}

	out := MonthlyBreakdown{Labels: make([]string, 0, len(seen))}
	if labels != nil {
		out.Labels = append(out.Labels, labels...)
	} else {
		for l := range seen {
			out.Labels = append(out.Labels, l)
		}
		sort.Strings(out.Labels)
	}

	keys := make([]ym, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})
	out.Months = make([]MonthBucket, 0, len(keys))
	for _, k := range keys {
		totals := buckets[k]
		for _, l := range labels {
			if _, ok := totals[l]; !ok {
				totals[l] = decimal.Zero
			}
		}
		out.Months = append(out.Months, MonthBucket{
			Key:    MonthKey(k.year, k.month),
			Year:   k.year,
			Month:  k.month,
			Totals: totals,
		})
	}
	return out, nil
}

func checkDate(r core.Record) error {
	if r.Date.IsZero() {
		return &core.DataError{RecordID: r.ID, Field: "date", Err: core.ErrInvalidDate}
	}
	return nil
}
