package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/log"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if state.cfg.DataBackend == "memory" {
				fmt.Fprintln(cmd.OutOrStdout(), "memory backend has no schema, nothing to migrate")
				return nil
			}
			store, err := state.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate %s: %w", state.cfg.DataBackend, err)
			}
			if err := store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping after migrate: %w", err)
			}
			state.logger.Info("Migrations applied",
				"backend", state.cfg.DataBackend,
				log.FieldOperation, log.OpStartup)
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", state.cfg.DataBackend)
			return nil
		},
	}
}
