package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

// fakeValues is an in-memory sheet honouring A:A and A:F reads.
type fakeValues struct {
	rows    [][]any
	failGet bool
}

func (f *fakeValues) get(_ context.Context, rng string) ([][]any, error) {
	if f.failGet {
		return nil, errors.New("quota exceeded")
	}
	out := make([][]any, 0, len(f.rows))
	for _, r := range f.rows {
		if strings.HasSuffix(rng, "!A:A") {
			out = append(out, r[:1])
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeValues) update(_ context.Context, rng string, rows [][]any) error {
	var n int
	if _, err := fmt.Sscanf(rng[strings.Index(rng, "!")+1:], "A%d:", &n); err != nil {
		return err
	}
	f.rows[n-1] = rows[0]
	return nil
}

func (f *fakeValues) append(_ context.Context, _ string, rows [][]any) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeValues) deleteRow(_ context.Context, row int) error {
	f.rows = append(f.rows[:row], f.rows[row+1:]...)
	return nil
}

func record(id, amount string) core.Record {
	return core.Record{
		ID:     id,
		Kind:   core.KindExpense,
		Amount: decimal.RequireFromString(amount),
		Label:  "Food",
		Date:   core.NewDate(2024, 11, 2),
	}
}

func TestUpsertWritesHeaderThenAppends(t *testing.T) {
	api := &fakeValues{}
	c := newClient(api, "Ledger")
	ctx := context.Background()

	require.NoError(t, c.UpsertRecord(ctx, record("a", "12.5")))
	require.NoError(t, c.UpsertRecord(ctx, record("b", "3")))

	require.Len(t, api.rows, 3)
	assert.Equal(t, "ID", api.rows[0][0])
	assert.Equal(t, []any{"a", "expense", "2024-11-02", "Food", "12.50", ""}, api.rows[1])
	assert.Equal(t, "b", api.rows[2][0])
}

func TestUpsertRewritesExistingRow(t *testing.T) {
	api := &fakeValues{}
	c := newClient(api, "Ledger")
	ctx := context.Background()

	require.NoError(t, c.UpsertRecord(ctx, record("a", "1")))
	require.NoError(t, c.UpsertRecord(ctx, record("b", "2")))
	require.NoError(t, c.UpsertRecord(ctx, record("a", "9.99")))

	require.Len(t, api.rows, 3)
	assert.Equal(t, "9.99", api.rows[1][4])
}

func TestDeleteRecord(t *testing.T) {
	api := &fakeValues{}
	c := newClient(api, "Ledger")
	ctx := context.Background()

	require.NoError(t, c.UpsertRecord(ctx, record("a", "1")))
	require.NoError(t, c.UpsertRecord(ctx, record("b", "2")))

	require.NoError(t, c.DeleteRecord(ctx, "a"))
	require.Len(t, api.rows, 2)
	assert.Equal(t, "b", api.rows[1][0])

	assert.NoError(t, c.DeleteRecord(ctx, "missing"), "deleting an absent row is a no-op")
	assert.NoError(t, c.DeleteRecord(ctx, "ID"), "the header is never deleted")
	assert.Len(t, api.rows, 2)
}

func TestUpsertPropagatesReadErrors(t *testing.T) {
	c := newClient(&fakeValues{failGet: true}, "Ledger")
	err := c.UpsertRecord(context.Background(), record("a", "1"))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestRecordsParsesRows(t *testing.T) {
	api := &fakeValues{rows: [][]any{
		{"ID", "Kind", "Date", "Label", "Amount", "Description"},
		{"a", "expense", "2024-11-02", "Food", "1,234.50", "groceries"},
		{"", "", "", "", "", ""},
		{"b", "income", "not-a-date", "Salary", "10", ""},
		{"c", "saving", "2024-01-01", "Car", "5"},
	}}
	c := newClient(api, "Ledger")

	recs, err := c.Records(context.Background())
	require.Error(t, err)
	var de *core.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "b", de.RecordID)
	assert.Equal(t, "date", de.Field)

	require.Len(t, recs, 2)
	assert.Equal(t, "1234.5", recs[0].Amount.String())
	assert.Equal(t, "groceries", recs[0].Description)
	assert.Equal(t, core.KindSaving, recs[1].Kind)
	assert.Equal(t, "Car", recs[1].Label)
}

func TestRecordsRejectsUnexpectedHeader(t *testing.T) {
	api := &fakeValues{rows: [][]any{{"Month", "Day"}}}
	_, err := newClient(api, "Ledger").Records(context.Background())
	assert.ErrorContains(t, err, "unexpected header")
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, Config{})
	assert.ErrorContains(t, err, "missing spreadsheet id")

	_, err = New(ctx, Config{SpreadsheetID: "x"})
	assert.ErrorContains(t, err, "missing service account credentials")
}
