// Command fintrackctl is the operator CLI: schema migrations, demo data,
// account management, terminal reports, OFX import and exports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// app carries what every subcommand needs once the root has initialised.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   storage.Store
	cleanup backend.CleanupFunc
}

var (
	cfgFile string
	state   = &app{}
	rootCmd = &cobra.Command{
		Use:               "fintrackctl",
		Short:             "Operate a fintrack ledger",
		SilenceUsage:      true,
		PersistentPreRunE: initApp,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return state.close()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (overrides "+config.ConfigFileEnv+")")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(restoreCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initApp(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	if cfgFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, cfgFile); err != nil {
			return err
		}
	}
	state.logger = cli.SetupLogger(log.ComponentCLI)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	state.cfg = cfg
	return nil
}

// open connects to the configured backend. For sqlite and postgres this also
// applies pending migrations.
func (a *app) open(ctx context.Context) (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(a.logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	a.store, a.cleanup = res.Store, res.Cleanup
	return a.store, nil
}

func (a *app) close() error {
	if a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.store, a.cleanup = nil, nil
	return err
}
