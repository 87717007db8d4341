package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// SyncWorker mirrors ledger changes announced over AMQP into an external
// sheet. Events only carry ids; the record itself is re-read from the store.
type SyncWorker struct {
	store  storage.RecordStore
	mirror sheets.Mirror
	logger *log.Logger
}

func NewSyncWorker(store storage.RecordStore, mirror sheets.Mirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{store: store, mirror: mirror, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent applies one record event to the mirror. A returned error
// means the event should be retried.
func (w *SyncWorker) HandleEvent(ctx context.Context, e events.RecordEvent) error {
	w.logger.InfoContext(ctx, "Processing record event",
		"type", string(e.Type),
		log.FieldKind, string(e.Kind),
		log.FieldRecordID, e.ID,
		log.FieldOwnerID, e.OwnerID)

	switch e.Type {
	case events.RecordCreated, events.RecordUpdated:
		return w.syncRecord(ctx, e)
	case events.RecordDeleted:
		return w.deleteRecord(ctx, e.ID)
	default:
		// DecodeEvent validates types, so this is a programming error upstream.
		return fmt.Errorf("unhandled event type %q", e.Type)
	}
}

func (w *SyncWorker) syncRecord(ctx context.Context, e events.RecordEvent) error {
	rec, err := w.store.GetRecord(ctx, e.OwnerID, e.Kind, e.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before we got here; the delete event may still be queued.
		w.logger.InfoContext(ctx, "Record no longer exists, removing from mirror", log.FieldRecordID, e.ID)
		return w.deleteRecord(ctx, e.ID)
	}
	var dataErr *core.DataError
	if errors.As(err, &dataErr) {
		// Retrying cannot fix a malformed row.
		w.logger.ErrorContext(ctx, "Skipping malformed record", log.FieldRecordID, e.ID, log.FieldError, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from store: %w", err)
	}

	if err := w.mirror.UpsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("upsert record in mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Successfully synced record",
		log.FieldRecordID, rec.ID,
		log.FieldLabel, rec.Label,
		log.FieldAmount, core.FormatAmount(rec.Amount))
	return nil
}

func (w *SyncWorker) deleteRecord(ctx context.Context, id string) error {
	if err := w.mirror.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record from mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Successfully deleted record from mirror", log.FieldRecordID, id)
	return nil
}

// StartupSyncCheck reads the mirror back once so that credential or layout
// problems surface at startup rather than on the first event. Malformed
// rows are logged, not fatal.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	reader, ok := w.mirror.(sheets.MirrorReader)
	if !ok {
		return nil
	}
	recs, err := reader.Records(ctx)
	var dataErr *core.DataError
	if err != nil && !errors.As(err, &dataErr) {
		return fmt.Errorf("read mirror: %w", err)
	}
	if err != nil {
		w.logger.WarnContext(ctx, "Mirror contains malformed rows", log.FieldError, err)
	}
	w.logger.InfoContext(ctx, "Startup sync check completed", "mirrored_records", len(recs))
	return nil
}
