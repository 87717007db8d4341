package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps an external copy of ledger records keyed by record id.
	Mirror interface {
		UpsertRecord(ctx context.Context, r core.Record) error
		// DeleteRecord removes the row for id. A missing row is not an error.
		DeleteRecord(ctx context.Context, id string) error
	}

	// MirrorReader reads the mirrored rows back as records.
	MirrorReader interface {
		Records(ctx context.Context) ([]core.Record, error)
	}
)

// Columns is the header row of a mirrored sheet.
var Columns = []string{"ID", "Kind", "Date", "Label", "Amount", "Description"}
