package http

// This file implements parsing and validation of request bodies and query
// parameters.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var errMalformedJSON = errors.New("malformed JSON body")

// decodeJSON reads one JSON value into dst. Syntax errors, wrong types and
// unknown fields are reported as errMalformedJSON.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedJSON, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errMalformedJSON)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedJSON, err)
	}
	return nil
}

// amountField accepts an amount as a JSON string or number and keeps its
// literal text, so no float rounding happens before ParseAmount.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amountField(n.String())
	return nil
}

// recordInput is the body of POST and PUT on a kind collection. Only the
// label field matching the kind may be set.
type recordInput struct {
	Amount      amountField `json:"amount"`
	Category    string      `json:"category"`
	Source      string      `json:"source"`
	Goal        string      `json:"goal"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
}

// toRecord validates the label field for kind and converts the input.
// Field errors wrap the core sentinels so they map to 422.
func (in recordInput) toRecord(kind core.Kind) (core.Record, error) {
	labels := map[string]string{"category": in.Category, "source": in.Source, "goal": in.Goal}
	field := kind.LabelField()
	for name, v := range labels {
		if name != field && strings.TrimSpace(v) != "" {
			return core.Record{}, fmt.Errorf("%w: %s does not take %q", core.ErrInvalidKind, kind.Plural(), name)
		}
	}

	amount, err := core.ParseAmount(string(in.Amount))
	if err != nil {
		return core.Record{}, err
	}
	date, err := core.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{
		Kind:        kind,
		Amount:      amount,
		Label:       sanitizeInput(labels[field]),
		Date:        date,
		Description: sanitizeInput(in.Description),
	}, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// parseMonth reads the optional month query parameter.
func parseMonth(r *http.Request) (int, error) {
	return analytics.ParseMonth(r.URL.Query().Get("month"))
}

// parseKindParam reads the kind query parameter, defaulting to expense.
func parseKindParam(r *http.Request) (core.Kind, error) {
	v := strings.TrimSpace(r.URL.Query().Get("kind"))
	if v == "" {
		return core.KindExpense, nil
	}
	return core.ParseKind(v)
}
