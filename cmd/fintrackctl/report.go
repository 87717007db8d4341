package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func reportCmd() *cobra.Command {
	var username, month string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a styled summary, breakdown and predictions for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := analytics.ParseMonth(month)
			if err != nil {
				return err
			}
			store, err := state.open(cmd.Context())
			if err != nil {
				return err
			}
			user, err := lookupUser(cmd.Context(), store, username)
			if err != nil {
				return err
			}
			r, err := buildReport(cmd.Context(), services.NewInsightService(store, nil, state.logger), user, m)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Render(r))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account to report on")
	cmd.Flags().StringVar(&month, "month", "all", "0-based month index (0..11) or all")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func buildReport(ctx context.Context, insights *services.InsightService, user core.User, month int) (report.Report, error) {
	summary, err := insights.Summary(ctx, user.ID, month, "")
	if err != nil {
		return report.Report{}, err
	}
	breakdown, err := insights.Breakdown(ctx, user.ID, core.KindExpense, month)
	if err != nil {
		return report.Report{}, err
	}
	monthly, err := insights.Monthly(ctx, user.ID, core.KindExpense)
	if err != nil {
		return report.Report{}, err
	}
	preds, err := insights.Predictions(ctx, user.ID)
	if err != nil {
		return report.Report{}, err
	}
	return report.Report{
		Username:    user.Username,
		Summary:     summary,
		Breakdown:   breakdown,
		Monthly:     monthly,
		Predictions: preds,
	}, nil
}

func lookupUser(ctx context.Context, store storage.UserStore, username string) (core.User, error) {
	u, err := store.UserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, fmt.Errorf("unknown user %q", username)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("look up user: %w", err)
	}
	state.logger.Debug("Resolved user", "username", username, log.FieldOwnerID, u.ID)
	return u, nil
}
