// Package storetest holds behaviour checks shared by every storage.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("record lifecycle", func(t *testing.T) { testRecordLifecycle(t, newStore(t)) })
	t.Run("owner isolation", func(t *testing.T) { testOwnerIsolation(t, newStore(t)) })
	t.Run("list order", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("delete user cascades", func(t *testing.T) { testDeleteUser(t, newStore(t)) })
	t.Run("amount range", func(t *testing.T) { testAmountRange(t, newStore(t)) })
}

func mustUser(t *testing.T, s storage.Store, name string) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), core.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		FullName:     "Test " + name,
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	return u
}

func record(owner string, kind core.Kind, amount, label string, date core.Date) core.Record {
	return core.Record{
		OwnerID: owner,
		Kind:    kind,
		Amount:  decimal.RequireFromString(amount),
		Label:   label,
		Date:    date,
	}
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice")

	got, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)

	got, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.CreateUser(ctx, core.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrUserExists)
	_, err = s.CreateUser(ctx, core.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	_, err = s.UserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testRecordLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "bob")

	for _, kind := range core.Kinds() {
		created, err := s.CreateRecord(ctx, record(u.ID, kind, "25.50", "Label", core.NewDate(2025, 11, 28)))
		require.NoError(t, err, kind)
		require.NotEmpty(t, created.ID)

		got, err := s.GetRecord(ctx, u.ID, kind, created.ID)
		require.NoError(t, err)
		assert.Equal(t, kind, got.Kind)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("25.5")))
		assert.Equal(t, core.NewDate(2025, 11, 28), got.Date)

		upd := got
		upd.Amount = decimal.RequireFromString("30")
		upd.Label = "Changed"
		upd.Description = "note"
		upd.Date = core.NewDate(2025, 12, 1)
		updated, err := s.UpdateRecord(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, "Changed", updated.Label)
		assert.Equal(t, "note", updated.Description)
		assert.Equal(t, core.NewDate(2025, 12, 1), updated.Date)

		list, err := s.ListRecords(ctx, u.ID, kind)
		require.NoError(t, err)
		require.Len(t, list, 1)

		require.NoError(t, s.DeleteRecord(ctx, u.ID, kind, created.ID))
		_, err = s.GetRecord(ctx, u.ID, kind, created.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.DeleteRecord(ctx, u.ID, kind, created.ID), storage.ErrNotFound)
	}
}

func testOwnerIsolation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	mallory := mustUser(t, s, "mallory")

	r, err := s.CreateRecord(ctx, record(alice.ID, core.KindExpense, "10", "Food", core.NewDate(2025, 1, 1)))
	require.NoError(t, err)

	_, err = s.GetRecord(ctx, mallory.ID, core.KindExpense, r.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	hijack := r
	hijack.OwnerID = mallory.ID
	_, err = s.UpdateRecord(ctx, hijack)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRecord(ctx, mallory.ID, core.KindExpense, r.ID), storage.ErrNotFound)

	_, err = s.GetRecord(ctx, alice.ID, core.KindIncome, r.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "kind is part of the key")

	list, err := s.ListRecords(ctx, mallory.ID, core.KindExpense)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testListOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "carol")
	for _, in := range []struct {
		label string
		date  core.Date
	}{
		{"old", core.NewDate(2025, 1, 1)},
		{"newest", core.NewDate(2025, 3, 1)},
		{"mid-first", core.NewDate(2025, 2, 1)},
		{"mid-second", core.NewDate(2025, 2, 1)},
	} {
		_, err := s.CreateRecord(ctx, record(u.ID, core.KindExpense, "1", in.label, in.date))
		require.NoError(t, err)
	}
	list, err := s.ListRecords(ctx, u.ID, core.KindExpense)
	require.NoError(t, err)
	labels := make([]string, 0, len(list))
	for _, r := range list {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"newest", "mid-second", "mid-first", "old"}, labels)
}

func testDeleteUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "dave")
	_, err := s.CreateRecord(ctx, record(u.ID, core.KindSaving, "100", "Vacation", core.NewDate(2025, 6, 1)))
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.UserByID(ctx, u.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	list, err := s.ListRecords(ctx, u.ID, core.KindSaving)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testAmountRange(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "whale")

	_, err := s.CreateRecord(ctx, record(u.ID, core.KindIncome, "100000000000000000000", "Lottery", core.NewDate(2025, 1, 2)))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	none, err := s.ListRecords(ctx, u.ID, core.KindIncome)
	require.NoError(t, err)
	assert.Empty(t, none)

	top, err := s.CreateRecord(ctx, record(u.ID, core.KindIncome, core.MaxAmount.String(), "Lottery", core.NewDate(2025, 1, 2)))
	require.NoError(t, err)
	got, err := s.GetRecord(ctx, u.ID, core.KindIncome, top.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(core.MaxAmount), "got %s", got.Amount)

	top.Amount = decimal.RequireFromString("92233720368547758.08")
	_, err = s.UpdateRecord(ctx, top)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	got, err = s.GetRecord(ctx, u.ID, core.KindIncome, top.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(core.MaxAmount))
}
