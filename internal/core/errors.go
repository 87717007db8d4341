package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DataError reports a present-but-invalid field on a single record. Absent
// data is never a DataError; aggregations return their zero value instead.
type DataError struct {
	RecordID string
	Field    string
	Err      error
}

func (e *DataError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<unsaved>"
	}
	return fmt.Sprintf("record %s: invalid %s: %v", id, e.Field, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// RawRecord is a record as read from an untyped source (a spreadsheet row,
// an imported file, a text column) before amount and date are parsed.
type RawRecord struct {
	ID          string
	OwnerID     string
	Kind        string
	Amount      string
	Label       string
	Date        string
	Description string
}

// ParseRecord converts a RawRecord into a Record. Unparseable amounts, dates
// or kinds yield a *DataError naming the record and field.
func ParseRecord(raw RawRecord) (Record, error) {
	kind, err := ParseKind(raw.Kind)
	if err != nil {
		return Record{}, &DataError{RecordID: raw.ID, Field: "kind", Err: err}
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw.Amount), ",", "."))
	if err != nil {
		return Record{}, &DataError{RecordID: raw.ID, Field: "amount", Err: ErrInvalidAmount}
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return Record{}, &DataError{RecordID: raw.ID, Field: "date", Err: err}
	}
	return Record{
		ID:          raw.ID,
		OwnerID:     raw.OwnerID,
		Kind:        kind,
		Amount:      amount,
		Label:       raw.Label,
		Date:        date,
		Description: raw.Description,
	}, nil
}
