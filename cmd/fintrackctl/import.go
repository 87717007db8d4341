package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fintrack/internal/log"
	"fintrack/internal/ofx"
	"fintrack/internal/services"
)

func importCmd() *cobra.Command {
	var username, file string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an OFX/QFX statement: debits become expenses, credits income",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := state.open(cmd.Context())
			if err != nil {
				return err
			}
			user, err := lookupUser(cmd.Context(), store, username)
			if err != nil {
				return err
			}
			ledger := services.NewLedgerService(store, nil, nil, nil, state.logger)
			n, skipped, err := importStatement(cmd.Context(), ledger, ofx.NewParser(state.logger), f, user.ID, dryRun)
			if err != nil {
				return err
			}
			verb := "Imported"
			if dryRun {
				verb = "Would import"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d records from %s (%d skipped)\n", verb, n, file, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account receiving the records")
	cmd.Flags().StringVar(&file, "file", "", "OFX or QFX statement")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "parse and validate without saving")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// importStatement parses r and creates every record through the ledger so
// that the usual validation applies. Records that fail validation are
// skipped and logged.
func importStatement(ctx context.Context, ledger *services.LedgerService, parser *ofx.Parser, r io.Reader, owner string, dryRun bool) (imported, skipped int, err error) {
	st, err := parser.Parse(ctx, r, owner)
	if err != nil {
		return 0, 0, err
	}
	skipped = st.Skipped
	for _, rec := range st.Records {
		if dryRun {
			if err := rec.Validate(); err != nil {
				skipped++
				continue
			}
			imported++
			continue
		}
		if _, err := ledger.Create(ctx, owner, rec); err != nil {
			state.logger.WarnContext(ctx, "Skipping statement line",
				log.FieldError, err,
				log.FieldKind, string(rec.Kind),
				"label", rec.Label)
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}
