// Package events defines ledger change notifications and fans them out to
// connected websocket clients.
package events

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

type Type string

const (
	RecordCreated Type = "record_created"
	RecordUpdated Type = "record_updated"
	RecordDeleted Type = "record_deleted"
)

var ErrInvalidEvent = errors.New("invalid event")

// RecordEvent announces a change to one ledger record. It carries only
// identifiers; consumers re-read the record from the store.
type RecordEvent struct {
	Type      Type      `json:"type"`
	Kind      core.Kind `json:"kind"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEvent(t Type, r core.Record) RecordEvent {
	return RecordEvent{
		Type:      t,
		Kind:      r.Kind,
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Timestamp: time.Now().UTC(),
	}
}

func (e RecordEvent) Validate() error {
	switch e.Type {
	case RecordCreated, RecordUpdated, RecordDeleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.ID == "" || e.OwnerID == "" {
		return fmt.Errorf("%w: missing id or owner", ErrInvalidEvent)
	}
	return nil
}
