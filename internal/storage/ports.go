package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("user already exists")
)

// RecordStore persists ledger records. Every operation is scoped to the
// owner; a record belonging to another owner behaves as if it did not exist.
type RecordStore interface {
	CreateRecord(ctx context.Context, r core.Record) (core.Record, error)
	// ListRecords returns the owner's records of kind, newest date first.
	ListRecords(ctx context.Context, ownerID string, kind core.Kind) ([]core.Record, error)
	GetRecord(ctx context.Context, ownerID string, kind core.Kind, id string) (core.Record, error)
	UpdateRecord(ctx context.Context, r core.Record) (core.Record, error)
	DeleteRecord(ctx context.Context, ownerID string, kind core.Kind, id string) error
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	UserByUsername(ctx context.Context, username string) (core.User, error)
	UserByID(ctx context.Context, id string) (core.User, error)
	// DeleteUser removes the account and all records it owns.
	DeleteUser(ctx context.Context, id string) error
}

// Store is a complete ledger backend.
type Store interface {
	RecordStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

type table struct {
	name  string
	label string
}

var tables = map[core.Kind]table{
	core.KindExpense: {name: "expenses", label: "category"},
	core.KindIncome:  {name: "incomes", label: "source"},
	core.KindSaving:  {name: "savings", label: "goal"},
}

func tableFor(kind core.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, core.ErrInvalidKind
	}
	return t, nil
}
