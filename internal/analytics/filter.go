package analytics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// AllMonths disables month filtering.
const AllMonths = -1

var ErrInvalidMonth = errors.New("invalid month")

// ParseMonth reads a 0-based month index or "all". Empty means all.
func ParseMonth(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllMonths, nil
	}
	m, err := strconv.Atoi(s)
	if err != nil || m < 0 || m > 11 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return m, nil
}

// FilterByMonth keeps records whose date falls in the 0-based month index,
// in any year. AllMonths returns records unchanged.
func FilterByMonth(records []core.Record, month int) ([]core.Record, error) {
	if month == AllMonths {
		return records, nil
	}
	if month < 0 || month > 11 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if err := checkDate(r); err != nil {
			return nil, err
		}
		if int(r.Date.Month())-1 == month {
			out = append(out, r)
		}
	}
	return out, nil
}

// FilterByLabel keeps records whose label equals label exactly. An empty
// label returns records unchanged.
func FilterByLabel(records []core.Record, label string) []core.Record {
	if label == "" {
		return records
	}
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if r.Label == label {
			out = append(out, r)
		}
	}
	return out
}
