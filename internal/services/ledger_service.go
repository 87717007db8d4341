package services

import (
	"context"
	"fmt"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// Publisher forwards record events to other processes.
type Publisher interface {
	Publish(ctx context.Context, e events.RecordEvent) error
}

// Broadcaster pushes record events to connected clients of the same process.
type Broadcaster interface {
	Publish(e events.RecordEvent)
}

// Invalidator drops an owner's cached views.
type Invalidator interface {
	InvalidateOwner(ctx context.Context, owner string) error
}

// ListFilter narrows a record listing. The zero value is not "all months";
// use analytics.AllMonths.
type ListFilter struct {
	Month int
	Label string
}

// LedgerService orchestrates record changes across the store, the insight
// cache, the websocket hub and the message broker. Only the store is
// required; the other collaborators may be nil.
type LedgerService struct {
	store     storage.RecordStore
	cache     Invalidator
	hub       Broadcaster
	publisher Publisher
	logger    *log.Logger
	audit     *log.StructuredLogger
}

func NewLedgerService(store storage.RecordStore, cache Invalidator, hub Broadcaster, publisher Publisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		store:     store,
		cache:     cache,
		hub:       hub,
		publisher: publisher,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
	}
}

// Create validates r and stores it for owner. Any id on r is ignored.
func (s *LedgerService) Create(ctx context.Context, owner string, r core.Record) (core.Record, error) {
	r.ID = ""
	r.OwnerID = owner
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	saved, err := s.store.CreateRecord(ctx, r)
	if err != nil {
		return core.Record{}, fmt.Errorf("create %s: %w", r.Kind, err)
	}
	s.audit.LogRecordChanged(ctx, log.OpCreate, saved)
	s.changed(ctx, events.RecordCreated, saved)
	return saved, nil
}

// List returns owner's records of kind, newest first, narrowed by f.
func (s *LedgerService) List(ctx context.Context, owner string, kind core.Kind, f ListFilter) ([]core.Record, error) {
	if !kind.Valid() {
		return nil, core.ErrInvalidKind
	}
	records, err := s.store.ListRecords(ctx, owner, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Plural(), err)
	}
	records, err = analytics.FilterByMonth(records, f.Month)
	if err != nil {
		return nil, err
	}
	return analytics.FilterByLabel(records, f.Label), nil
}

func (s *LedgerService) Get(ctx context.Context, owner string, kind core.Kind, id string) (core.Record, error) {
	return s.store.GetRecord(ctx, owner, kind, id)
}

// Update replaces the amount, label, date and description of an existing
// record. The record must belong to owner.
func (s *LedgerService) Update(ctx context.Context, owner string, kind core.Kind, id string, r core.Record) (core.Record, error) {
	r.ID = id
	r.OwnerID = owner
	r.Kind = kind
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	saved, err := s.store.UpdateRecord(ctx, r)
	if err != nil {
		return core.Record{}, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	s.audit.LogRecordChanged(ctx, log.OpUpdate, saved)
	s.changed(ctx, events.RecordUpdated, saved)
	return saved, nil
}

func (s *LedgerService) Delete(ctx context.Context, owner string, kind core.Kind, id string) error {
	if !kind.Valid() {
		return core.ErrInvalidKind
	}
	if err := s.store.DeleteRecord(ctx, owner, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	gone := core.Record{ID: id, OwnerID: owner, Kind: kind}
	s.audit.LogRecordChanged(ctx, log.OpDelete, gone)
	s.changed(ctx, events.RecordDeleted, gone)
	return nil
}

// changed runs the side effects of a committed change. None of them can
// fail the request.
func (s *LedgerService) changed(ctx context.Context, t events.Type, r core.Record) {
	if s.cache != nil {
		if err := s.cache.InvalidateOwner(ctx, r.OwnerID); err != nil {
			s.logger.WarnContext(ctx, "Failed to invalidate insight cache",
				log.FieldOwnerID, r.OwnerID, log.FieldError, err)
		}
	}

	e := events.NewRecordEvent(t, r)
	if s.hub != nil {
		s.hub.Publish(e)
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping sync message")
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish record event",
			log.FieldRecordID, r.ID, log.FieldKind, string(r.Kind), log.FieldError, err)
	}
}
