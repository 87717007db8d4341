package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/export"
	"fintrack/internal/services"
)

// passphraseEnv supplies the backup passphrase to scripted runs.
const passphraseEnv = "FINTRACK_BACKUP_PASSPHRASE"

func exportCmd() *cobra.Command {
	var username, format, out, passphrase string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's ledger as an xlsx workbook or an age-encrypted backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "xlsx" && format != "age" {
				return fmt.Errorf("unknown format %q: want xlsx or age", format)
			}
			store, err := state.open(cmd.Context())
			if err != nil {
				return err
			}
			user, err := lookupUser(cmd.Context(), store, username)
			if err != nil {
				return err
			}
			records, err := services.NewInsightService(store, nil, state.logger).Records(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			if format == "age" {
				if passphrase, err = backupPassphrase(cmd, passphrase); err != nil {
					return err
				}
			}

			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			if format == "xlsx" {
				err = export.WriteWorkbook(f, records)
			} else {
				err = export.WriteEncryptedBackup(f, export.NewBackup(user.Username, records, time.Now()), passphrase)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("export %s: %w", format, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account to export")
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx or age")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "backup passphrase (default: $"+passphraseEnv+" or prompt)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func restoreCmd() *cobra.Command {
	var username, file, passphrase string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Load records from an age-encrypted backup into an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pass, err := backupPassphrase(cmd, passphrase)
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			backup, err := export.ReadEncryptedBackup(f, pass)
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
			ledger := services.NewLedgerService(store, nil, nil, nil, state.logger)
			n, err := restoreBackup(cmd.Context(), ledger, backup, user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d records from the %s backup of %s\n",
				n, backup.ExportedAt.Format(time.DateOnly), backup.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account receiving the records")
	cmd.Flags().StringVar(&file, "file", "", "backup written by export --format age")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "backup passphrase (default: $"+passphraseEnv+" or prompt)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// restoreBackup re-creates every record of b for owner. Records get fresh ids.
func restoreBackup(ctx context.Context, ledger *services.LedgerService, b export.Backup, owner string) (int, error) {
	records := b.Records(owner)
	for _, rec := range records {
		if _, err := ledger.Create(ctx, owner, rec); err != nil {
			return 0, fmt.Errorf("restore %s %s: %w", rec.Kind, rec.ID, err)
		}
	}
	return len(records), nil
}

func backupPassphrase(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(passphraseEnv); env != "" {
		return env, nil
	}
	return readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), false)
}
