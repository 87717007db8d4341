package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds the optional free-text description of a record.
const MaxDescriptionLength = 200

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
	KindSaving  Kind = "saving"
)

type (
	// Kind tags a record as expense, income or saving.
	Kind string

	// Date is a calendar date without time-of-day semantics, stored as UTC midnight.
	Date struct {
		time.Time
	}

	// Record is one financial event owned by a user. Label holds the
	// category, source or goal depending on Kind.
	Record struct {
		ID          string
		OwnerID     string
		Kind        Kind
		Amount      decimal.Decimal
		Label       string
		Date        Date
		Description string
		CreatedAt   time.Time
	}

	Expense struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
	}

	Income struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Source      string          `json:"source"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
	}

	Saving struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Goal        string          `json:"goal"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
	}

	// User is an account that owns records.
	User struct {
		ID           string
		Username     string
		Email        string
		PasswordHash string
		FullName     string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidKind        = errors.New("invalid record kind")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyLabel         = errors.New("empty label")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrMissingOwner       = errors.New("missing owner")
)

// Kinds lists every record kind in a fixed order.
func Kinds() []Kind {
	return []Kind{KindExpense, KindIncome, KindSaving}
}

// ParseKind accepts the canonical kind names plus the plural forms used in URLs.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "expenses":
		return KindExpense, nil
	case "income", "incomes":
		return KindIncome, nil
	case "saving", "savings":
		return KindSaving, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome || k == KindSaving
}

// LabelField is the wire name of the grouping key for this kind.
func (k Kind) LabelField() string {
	switch k {
	case KindIncome:
		return "source"
	case KindSaving:
		return "goal"
	default:
		return "category"
	}
}

// Plural is the collection name used in routes and sheet tabs.
func (k Kind) Plural() string {
	switch k {
	case KindIncome:
		return "income"
	case KindSaving:
		return "savings"
	default:
		return "expenses"
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the invariants enforced at input time.
func (r Record) Validate() error {
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !r.Amount.IsPositive() || r.Amount.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Label) == "" {
		return ErrEmptyLabel
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if len(r.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// MarshalJSON renders the record in its kind-specific shape.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindIncome:
		return json.Marshal(r.Income())
	case KindSaving:
		return json.Marshal(r.Saving())
	default:
		return json.Marshal(r.Expense())
	}
}

func (r Record) Expense() Expense {
	return Expense{ID: r.ID, Amount: r.Amount, Category: r.Label, Date: r.Date, Description: r.Description}
}

func (r Record) Income() Income {
	return Income{ID: r.ID, Amount: r.Amount, Source: r.Label, Date: r.Date, Description: r.Description}
}

func (r Record) Saving() Saving {
	return Saving{ID: r.ID, Amount: r.Amount, Goal: r.Label, Date: r.Date, Description: r.Description}
}

func (e Expense) Record(owner string) Record {
	return Record{ID: e.ID, OwnerID: owner, Kind: KindExpense, Amount: e.Amount, Label: e.Category, Date: e.Date, Description: e.Description}
}

func (i Income) Record(owner string) Record {
	return Record{ID: i.ID, OwnerID: owner, Kind: KindIncome, Amount: i.Amount, Label: i.Source, Date: i.Date, Description: i.Description}
}

func (s Saving) Record(owner string) Record {
	return Record{ID: s.ID, OwnerID: owner, Kind: KindSaving, Amount: s.Amount, Label: s.Goal, Date: s.Date, Description: s.Description}
}

// FilterKind returns the records of the given kind, preserving order.
func FilterKind(records []Record, kind Kind) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
