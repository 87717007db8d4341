package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"amount":"1.00","category":"Food","date":"2024-01-01"}`, false},
		{"numeric amount", `{"amount":1.5,"category":"Food","date":"2024-01-01"}`, false},
		{"unknown field", `{"amount":"1","colour":"red"}`, true},
		{"truncated", `{"amount":`, true},
		{"wrong type", `{"date":5}`, true},
		{"too large", `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var in recordInput
			err := decodeJSON(req, &in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errMalformedJSON), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAmountFieldKeepsLiteral(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0.1,"category":"A","date":"2024-01-01"}`))
	var in recordInput
	require.NoError(t, decodeJSON(req, &in))
	assert.Equal(t, amountField("0.1"), in.Amount)

	rec, err := in.toRecord(core.KindExpense)
	require.NoError(t, err)
	assert.Equal(t, "0.1", rec.Amount.String())
}

func TestRecordInputToRecord(t *testing.T) {
	tests := []struct {
		name    string
		kind    core.Kind
		in      recordInput
		wantErr error
		label   string
	}{
		{"expense", core.KindExpense, recordInput{Amount: "12,50", Category: " Food ", Date: "2024-03-01"}, nil, "Food"},
		{"income", core.KindIncome, recordInput{Amount: "100", Source: "Salary", Date: "2024-03-01"}, nil, "Salary"},
		{"saving", core.KindSaving, recordInput{Amount: "10", Goal: "Car", Date: "2024-03-01"}, nil, "Car"},
		{"foreign label", core.KindSaving, recordInput{Amount: "10", Category: "Car", Date: "2024-03-01"}, core.ErrInvalidKind, ""},
		{"bad amount", core.KindExpense, recordInput{Amount: "1.2.3", Category: "A", Date: "2024-03-01"}, core.ErrInvalidAmount, ""},
		{"bad date", core.KindExpense, recordInput{Amount: "1", Category: "A", Date: "2024-13-01"}, core.ErrInvalidDate, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := tt.in.toRecord(tt.kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, rec.Kind)
			assert.Equal(t, tt.label, rec.Label)
		})
	}
}

func TestParseQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?month=11&kind=incomes", nil)
	m, err := parseMonth(req)
	require.NoError(t, err)
	assert.Equal(t, 11, m)
	k, err := parseKindParam(req)
	require.NoError(t, err)
	assert.Equal(t, core.KindIncome, k)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	m, err = parseMonth(req)
	require.NoError(t, err)
	assert.Equal(t, analytics.AllMonths, m)
	k, err = parseKindParam(req)
	require.NoError(t, err)
	assert.Equal(t, core.KindExpense, k)

	_, err = parseMonth(httptest.NewRequest(http.MethodGet, "/?month=-1", nil))
	assert.ErrorIs(t, err, analytics.ErrInvalidMonth)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Food", sanitizeInput("  Fo\x00od\x07 "))
	assert.Equal(t, "a\tb", sanitizeInput("a\tb"))
}
