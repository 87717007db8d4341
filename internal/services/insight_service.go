package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// OwnerCachePrefix is the key prefix of every cached view belonging to owner.
func OwnerCachePrefix(owner string) string {
	return "owner:" + owner + ":"
}

// InsightService loads an owner's ledger and runs the analytics engine over
// it. Results are cached per owner and query until the next ledger change.
type InsightService struct {
	store  storage.RecordStore
	cache  cache.Cache[json.RawMessage]
	logger *log.Logger

	// mu guards generations and orders cache writes against invalidation.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewInsightService builds the service. A nil cache disables caching.
func NewInsightService(store storage.RecordStore, c cache.Cache[json.RawMessage], logger *log.Logger) *InsightService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &InsightService{
		store:       store,
		cache:       c,
		logger:      logger.WithComponent(log.ComponentInsights),
		generations: make(map[string]uint64),
	}
}

// InvalidateOwner drops owner's cached views. Views still being computed
// from data read before the call are not cached when they finish.
func (s *InsightService) InvalidateOwner(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[owner]++
	if s.cache == nil {
		return nil
	}
	return s.cache.DeletePrefix(ctx, OwnerCachePrefix(owner))
}

func (s *InsightService) generation(owner string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[owner]
}

// Records fetches every kind for owner concurrently, keyed by kind.
func (s *InsightService) Records(ctx context.Context, owner string) (map[core.Kind][]core.Record, error) {
	kinds := core.Kinds()
	results := make([][]core.Record, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			recs, err := s.store.ListRecords(gctx, owner, kind)
			if err != nil {
				return fmt.Errorf("load %s: %w", kind.Plural(), err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[core.Kind][]core.Record, len(kinds))
	for i, kind := range kinds {
		out[kind] = results[i]
	}
	return out, nil
}

func (s *InsightService) all(ctx context.Context, owner string) ([]core.Record, error) {
	byKind, err := s.Records(ctx, owner)
	if err != nil {
		return nil, err
	}
	var all []core.Record
	for _, kind := range core.Kinds() {
		all = append(all, byKind[kind]...)
	}
	return all, nil
}

// Summary totals every kind, optionally narrowed to a month and label.
func (s *InsightService) Summary(ctx context.Context, owner string, month int, label string) (analytics.Summary, error) {
	key := fmt.Sprintf("%ssummary:%d:%s", OwnerCachePrefix(owner), month, label)
	return cached(ctx, s, owner, key, func() (analytics.Summary, error) {
		records, err := s.all(ctx, owner)
		if err != nil {
			return analytics.Summary{}, err
		}
		records, err = analytics.FilterByMonth(records, month)
		if err != nil {
			return analytics.Summary{}, err
		}
		return analytics.Summarize(analytics.FilterByLabel(records, label))
	})
}

// Breakdown splits one kind's total by label.
func (s *InsightService) Breakdown(ctx context.Context, owner string, kind core.Kind, month int) ([]analytics.CategoryTotal, error) {
	key := fmt.Sprintf("%sbreakdown:%s:%d", OwnerCachePrefix(owner), kind, month)
	return cached(ctx, s, owner, key, func() ([]analytics.CategoryTotal, error) {
		records, err := s.kind(ctx, owner, kind, month)
		if err != nil {
			return nil, err
		}
		return analytics.CategoryBreakdown(records), nil
	})
}

// Highest returns the expense category with the largest total, or nil when
// there are no expenses in range.
func (s *InsightService) Highest(ctx context.Context, owner string, month int) (*analytics.CategoryAmount, error) {
	key := fmt.Sprintf("%shighest:%d", OwnerCachePrefix(owner), month)
	return cached(ctx, s, owner, key, func() (*analytics.CategoryAmount, error) {
		records, err := s.kind(ctx, owner, core.KindExpense, month)
		if err != nil {
			return nil, err
		}
		top, ok := analytics.HighestCategory(records)
		if !ok {
			return nil, nil
		}
		return &top, nil
	})
}

// Monthly buckets one kind by calendar month.
func (s *InsightService) Monthly(ctx context.Context, owner string, kind core.Kind) (analytics.MonthlyBreakdown, error) {
	key := fmt.Sprintf("%smonthly:%s", OwnerCachePrefix(owner), kind)
	return cached(ctx, s, owner, key, func() (analytics.MonthlyBreakdown, error) {
		records, err := s.kind(ctx, owner, kind, analytics.AllMonths)
		if err != nil {
			return analytics.MonthlyBreakdown{}, err
		}
		return analytics.Monthly(records, nil)
	})
}

func (s *InsightService) Predictions(ctx context.Context, owner string) ([]analytics.Prediction, error) {
	key := OwnerCachePrefix(owner) + "predictions"
	return cached(ctx, s, owner, key, func() ([]analytics.Prediction, error) {
		records, err := s.store.ListRecords(ctx, owner, core.KindExpense)
		if err != nil {
			return nil, fmt.Errorf("load expenses: %w", err)
		}
		return analytics.Predict(records)
	})
}

func (s *InsightService) kind(ctx context.Context, owner string, kind core.Kind, month int) ([]core.Record, error) {
	if !kind.Valid() {
		return nil, core.ErrInvalidKind
	}
	records, err := s.store.ListRecords(ctx, owner, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind.Plural(), err)
	}
	return analytics.FilterByMonth(records, month)
}

// cached serves key from the cache when possible and stores fresh results
// otherwise. Cache faults are logged and bypassed.
func cached[T any](ctx context.Context, s *InsightService, owner, key string, compute func() (T, error)) (T, error) {
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Insight cache read failed", "key", key, log.FieldError, err)
		} else if ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
		}
	}

	gen := s.generation(owner)
	v, err := compute()
	if err != nil {
		return v, err
	}
	if s.cache == nil {
		return v, nil
	}

	raw, err := json.Marshal(v)
	if err == nil {
		s.mu.Lock()
		if s.generations[owner] == gen {
			err = s.cache.Set(ctx, key, raw)
		}
		s.mu.Unlock()
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Insight cache write failed", "key", key, log.FieldError, err)
	}
	return v, nil
}
