package google

import (
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// recordRow renders r in column order.
func recordRow(r core.Record) []any {
	return []any{r.ID, string(r.Kind), r.Date.String(), r.Label, core.FormatAmount(r.Amount), r.Description}
}

func headerRow() []any {
	out := make([]any, len(sheets.Columns))
	for i, c := range sheets.Columns {
		out[i] = c
	}
	return out
}

// parseRows converts a values matrix (as returned by the Sheets API) into
// records. The first row must be the header. Rows with a blank ID are
// skipped; malformed cells are reported as *core.DataError, joined.
func parseRows(values [][]any) ([]core.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	for i, want := range sheets.Columns {
		if !strings.EqualFold(safeGet(headers, i), want) {
			return nil, fmt.Errorf("unexpected header: column %d is %q, want %q", i+1, safeGet(headers, i), want)
		}
	}

	var (
		out  []core.Record
		errs []error
	)
	for _, row := range values[1:] {
		cols := toStrings(row)
		id := safeGet(cols, 0)
		if id == "" {
			continue
		}
		r, err := core.ParseRecord(core.RawRecord{
			ID:          id,
			Kind:        safeGet(cols, 1),
			Date:        safeGet(cols, 2),
			Label:       safeGet(cols, 3),
			Amount:      normalizeAmount(safeGet(cols, 4)),
			Description: safeGet(cols, 5),
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

// findRow returns the 0-based index of the row whose first column is id,
// or -1.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

// normalizeAmount strips the thousands separators the sheet adds when it
// renders large USER_ENTERED numbers, such as "1,234.50". A lone comma is
// left for ParseRecord to read as a decimal separator.
func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", "")
	}
	return s
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
