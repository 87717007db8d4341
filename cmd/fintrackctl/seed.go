package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const (
	demoUsername = "testuser"
	demoPassword = "password123"
	demoEmail    = "test@example.com"
	demoFullName = "Test User"
)

type demoRecord struct {
	kind        core.Kind
	amount      string
	label       string
	date        string
	description string
}

var demoRecords = []demoRecord{
	{core.KindExpense, "25.50", "Food", "2025-11-28", "Dinner at Restaurant"},
	{core.KindExpense, "15.00", "Food", "2025-11-29", "Lunch Takeout"},
	{core.KindExpense, "18.25", "Food", "2025-11-30", "Groceries for the week"},
	{core.KindExpense, "150.00", "Bills", "2025-10-05", "Electricity Bill"},
	{core.KindExpense, "60.00", "Bills", "2025-11-05", "Internet"},
	{core.KindExpense, "45.00", "Travel", "2025-11-15", "Gas refill"},
	{core.KindIncome, "3500.00", "Salary", "2025-11-01", "Monthly Paycheck"},
	{core.KindIncome, "500.00", "Freelance", "2025-11-15", "Project payment"},
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Reset the demo account " + demoUsername + " and load sample records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := state.open(cmd.Context())
			if err != nil {
				return err
			}
			user, n, err := seedDemo(cmd.Context(), store, state.logger)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d records for %s (id %s). Password is %q\n",
				n, user.Username, user.ID, demoPassword)
			return nil
		},
	}
}

// seedDemo deletes any previous demo account with its records and recreates it.
func seedDemo(ctx context.Context, store storage.Store, logger *log.Logger) (core.User, int, error) {
	old, err := store.UserByUsername(ctx, demoUsername)
	switch {
	case err == nil:
		if err := store.DeleteUser(ctx, old.ID); err != nil {
			return core.User{}, 0, fmt.Errorf("clear previous demo user: %w", err)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return core.User{}, 0, fmt.Errorf("look up demo user: %w", err)
	}

	user, err := auth.NewService(store, nil, logger).CreateUser(ctx, auth.Registration{
		Username: demoUsername,
		Email:    demoEmail,
		Password: demoPassword,
		FullName: demoFullName,
	})
	if err != nil {
		return core.User{}, 0, err
	}

	ledger := services.NewLedgerService(store, nil, nil, nil, logger)
	for _, d := range demoRecords {
		date, err := core.ParseDate(d.date)
		if err != nil {
			return core.User{}, 0, err
		}
		if _, err := ledger.Create(ctx, user.ID, core.Record{
			Kind:        d.kind,
			Amount:      decimal.RequireFromString(d.amount),
			Label:       d.label,
			Date:        date,
			Description: d.description,
		}); err != nil {
			return core.User{}, 0, err
		}
	}
	return user, len(demoRecords), nil
}
