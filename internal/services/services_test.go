package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type recordingHub struct {
	mu     sync.Mutex
	events []events.RecordEvent
}

func (h *recordingHub) Publish(e events.RecordEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(context.Context, events.RecordEvent) error {
	p.calls++
	return errors.New("broker down")
}

func expense(amount, category, date string) core.Record {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Record{
		Kind:   core.KindExpense,
		Amount: decimal.RequireFromString(amount),
		Label:  category,
		Date:   d,
	}
}

func TestLedgerServiceCreateFiresSideEffects(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	lru := cache.NewLRUCache[json.RawMessage](100, time.Minute)
	hub := &recordingHub{}
	pub := &failingPublisher{}
	svc := NewLedgerService(store, NewInsightService(store, lru, nil), hub, pub, nil)

	require.NoError(t, lru.Set(ctx, OwnerCachePrefix("alice")+"summary", []byte("{}")))
	require.NoError(t, lru.Set(ctx, OwnerCachePrefix("bob")+"summary", []byte("{}")))

	saved, err := svc.Create(ctx, "alice", expense("12.50", "Food", "2024-11-02"))
	require.NoError(t, err, "publisher failure must not fail the request")
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "alice", saved.OwnerID)

	_, ok, _ := lru.Get(ctx, OwnerCachePrefix("alice")+"summary")
	assert.False(t, ok, "owner's cache should be invalidated")
	_, ok, _ = lru.Get(ctx, OwnerCachePrefix("bob")+"summary")
	assert.True(t, ok, "other owners keep their cache")

	require.Len(t, hub.events, 1)
	assert.Equal(t, events.RecordCreated, hub.events[0].Type)
	assert.Equal(t, saved.ID, hub.events[0].ID)
	assert.Equal(t, 1, pub.calls)
}

func TestLedgerServiceRejectsInvalidRecords(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  core.Record
		want error
	}{
		{"zero amount", expense("0", "Food", "2024-01-01"), core.ErrInvalidAmount},
		{"empty label", expense("5", "", "2024-01-01"), core.ErrEmptyLabel},
		{"bad kind", core.Record{Kind: "loan", Amount: decimal.RequireFromString("1"), Label: "x", Date: core.NewDate(2024, 1, 1)}, core.ErrInvalidKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "alice", tt.rec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLedgerServiceOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil, nil, nil, nil)

	saved, err := svc.Create(ctx, "alice", expense("10", "Food", "2024-03-01"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "bob", core.KindExpense, saved.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Update(ctx, "bob", core.KindExpense, saved.ID, expense("99", "Food", "2024-03-01"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "bob", core.KindExpense, saved.ID), storage.ErrNotFound)

	got, err := svc.Get(ctx, "alice", core.KindExpense, saved.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("10")))
}

func TestLedgerServiceUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	hub := &recordingHub{}
	svc := NewLedgerService(memory.New(), nil, hub, nil, nil)

	saved, err := svc.Create(ctx, "alice", expense("10", "Food", "2024-03-01"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "alice", core.KindExpense, saved.ID, expense("20.25", "Dining", "2024-03-02"))
	require.NoError(t, err)
	assert.Equal(t, "Dining", updated.Label)
	assert.Equal(t, saved.ID, updated.ID)

	require.NoError(t, svc.Delete(ctx, "alice", core.KindExpense, saved.ID))
	_, err = svc.Get(ctx, "alice", core.KindExpense, saved.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.Len(t, hub.events, 3)
	assert.Equal(t, events.RecordUpdated, hub.events[1].Type)
	assert.Equal(t, events.RecordDeleted, hub.events[2].Type)
}

func TestLedgerServiceListFilters(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil, nil, nil, nil)
	for _, r := range []core.Record{
		expense("10", "Food", "2024-11-02"),
		expense("20", "Bills", "2024-11-05"),
		expense("30", "Food", "2024-10-01"),
	} {
		_, err := svc.Create(ctx, "alice", r)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "alice", core.KindExpense, ListFilter{Month: analytics.AllMonths})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-11-05", all[0].Date.String(), "newest first")

	nov, err := svc.List(ctx, "alice", core.KindExpense, ListFilter{Month: 10, Label: "Food"})
	require.NoError(t, err)
	require.Len(t, nov, 1)
	assert.True(t, nov[0].Amount.Equal(decimal.RequireFromString("10")))

	_, err = svc.List(ctx, "alice", core.KindExpense, ListFilter{Month: 12})
	assert.ErrorIs(t, err, analytics.ErrInvalidMonth)
}

func TestInsightServiceSummaryAndCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	lru := cache.NewLRUCache[json.RawMessage](100, time.Minute)
	insights := NewInsightService(store, lru, nil)
	ledger := NewLedgerService(store, insights, nil, nil, nil)

	_, err := ledger.Create(ctx, "alice", expense("40", "Food", "2024-01-01"))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, "alice", core.Record{
		Kind: core.KindIncome, Amount: decimal.RequireFromString("100"), Label: "Salary", Date: core.NewDate(2024, 1, 3),
	})
	require.NoError(t, err)

	sum, err := insights.Summary(ctx, "alice", analytics.AllMonths, "")
	require.NoError(t, err)
	assert.Equal(t, "100", sum.TotalIncome.String())
	assert.Equal(t, "40", sum.TotalExpenses.String())
	assert.Equal(t, "60", sum.Net.String())
	require.NotNil(t, sum.HighestCategory)
	assert.Equal(t, "Food", sum.HighestCategory.Label)
	assert.Equal(t, 1, lru.Size())

	_, err = ledger.Create(ctx, "alice", expense("10", "Bills", "2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 0, lru.Size(), "ledger change drops cached insights")

	sum, err = insights.Summary(ctx, "alice", analytics.AllMonths, "")
	require.NoError(t, err)
	assert.Equal(t, "50", sum.TotalExpenses.String())
	assert.Equal(t, 2, sum.ExpenseCount)
}

// slowStore blocks expense listings until release is closed, so a ledger
// change can land while a view is being computed.
type slowStore struct {
	storage.RecordStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowStore) ListRecords(ctx context.Context, owner string, kind core.Kind) ([]core.Record, error) {
	recs, err := s.RecordStore.ListRecords(ctx, owner, kind)
	if kind == core.KindExpense {
		s.once.Do(func() {
			close(s.started)
			<-s.release
		})
	}
	return recs, err
}

func TestInsightServiceDoesNotCacheViewComputedAcrossChange(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	slow := &slowStore{RecordStore: store, started: make(chan struct{}), release: make(chan struct{})}
	lru := cache.NewLRUCache[json.RawMessage](100, time.Minute)
	insights := NewInsightService(slow, lru, nil)
	ledger := NewLedgerService(store, insights, nil, nil, nil)

	_, err := ledger.Create(ctx, "alice", expense("40", "Food", "2024-01-01"))
	require.NoError(t, err)

	done := make(chan analytics.Summary)
	go func() {
		sum, err := insights.Summary(ctx, "alice", analytics.AllMonths, "")
		assert.NoError(t, err)
		done <- sum
	}()
	<-slow.started
	_, err = ledger.Create(ctx, "alice", expense("10", "Bills", "2024-01-02"))
	require.NoError(t, err)
	close(slow.release)

	stale := <-done
	assert.Equal(t, "40", stale.TotalExpenses.String())
	assert.Equal(t, 0, lru.Size(), "a view read before the change must not be cached")

	sum, err := insights.Summary(ctx, "alice", analytics.AllMonths, "")
	require.NoError(t, err)
	assert.Equal(t, "50", sum.TotalExpenses.String())
}

func TestInsightServiceViews(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ledger := NewLedgerService(store, nil, nil, nil, nil)
	insights := NewInsightService(store, nil, nil)

	for _, r := range []core.Record{
		expense("5.55", "Food", "2024-11-01"),
		expense("10", "Food", "2024-11-02"),
		expense("20", "Food", "2024-11-03"),
		expense("50", "Bills", "2024-12-01"),
	} {
		_, err := ledger.Create(ctx, "alice", r)
		require.NoError(t, err)
	}

	highest, err := insights.Highest(ctx, "alice", 10)
	require.NoError(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, "Food", highest.Label)

	none, err := insights.Highest(ctx, "bob", analytics.AllMonths)
	require.NoError(t, err)
	assert.Nil(t, none)

	breakdown, err := insights.Breakdown(ctx, "alice", core.KindExpense, analytics.AllMonths)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	monthly, err := insights.Monthly(ctx, "alice", core.KindExpense)
	require.NoError(t, err)
	require.Len(t, monthly.Months, 2)
	assert.Equal(t, "Nov 2024", monthly.Months[0].Key)

	// Bills has a single expense, too few to forecast.
	preds, err := insights.Predictions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "Food", preds[0].Category)
	assert.Equal(t, "11.85", preds[0].PredictedAmount.StringFixed(2))
}
