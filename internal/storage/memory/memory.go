// Package memory is an in-process ledger backend for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	mu      sync.RWMutex
	users   map[string]core.User
	records map[string]core.Record
	seq     int64
	order   map[string]int64
}

func New() *Store {
	return &Store{
		users:   make(map[string]core.User),
		records: make(map[string]core.Record),
		order:   make(map[string]int64),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateRecord(_ context.Context, r core.Record) (core.Record, error) {
	if !r.Kind.Valid() {
		return core.Record{}, core.ErrInvalidKind
	}
	if _, err := core.ToCents(r.Amount); err != nil {
		return core.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()
	s.seq++
	s.records[r.ID] = r
	s.order[r.ID] = s.seq
	return r, nil
}

func (s *Store) ListRecords(_ context.Context, ownerID string, kind core.Kind) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, 0)
	for _, r := range s.records {
		if r.OwnerID == ownerID && r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return out, nil
}

func (s *Store) GetRecord(_ context.Context, ownerID string, kind core.Kind, id string) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != ownerID || r.Kind != kind {
		return core.Record{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateRecord(_ context.Context, r core.Record) (core.Record, error) {
	if _, err := core.ToCents(r.Amount); err != nil {
		return core.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[r.ID]
	if !ok || existing.OwnerID != r.OwnerID || existing.Kind != r.Kind {
		return core.Record{}, storage.ErrNotFound
	}
	existing.Amount = r.Amount
	existing.Label = r.Label
	existing.Date = r.Date
	existing.Description = r.Description
	s.records[r.ID] = existing
	return existing, nil
}

func (s *Store) DeleteRecord(_ context.Context, ownerID string, kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != ownerID || r.Kind != kind {
		return storage.ErrNotFound
	}
	delete(s.records, id)
	delete(s.order, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return core.User{}, storage.ErrUserExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	for rid, r := range s.records {
		if r.OwnerID == id {
			delete(s.records, rid)
			delete(s.order, rid)
		}
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
