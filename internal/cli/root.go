// Package cli implements recordctl, the operator command line for the
// record store.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetstore/internal/app"
	"github.com/JonMunkholm/sheetstore/internal/config"
	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Output string // "yaml" | "table"
	Actor  string
	Open   Opener
}

// ValidOutputs defines the allowed output formats.
var ValidOutputs = []string{"yaml", "table"}

// Opener opens the store a command works on.
type Opener func(ctx context.Context) (*app.App, error)

// OpenFromEnv loads configuration from the environment and opens the store
// it selects. Metrics go to a private registry; nothing serves them.
func OpenFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return app.Open(ctx, cfg, prometheus.NewRegistry())
}

// NewRootCommand creates the recordctl root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "recordctl",
		Short: "Inspect and maintain the onboarding record store",
		Long: `recordctl reads and writes the spreadsheet-backed record store.

It uses the same environment variables as the server. Without
SHEETS_SPREADSHEET_ID and SHEETS_CREDENTIALS_FILE it runs against an empty
in-memory store, which is only useful for trying commands out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidOutputs, opts.Output) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid output %q: must be one of %v", opts.Output, ValidOutputs))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "table", "output format (yaml|table)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "recordctl", "actor recorded in the audit log")

	cmd.AddCommand(newProvisionCommand(opts))
	cmd.AddCommand(newTablesCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newExtractCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newAuditCommand(opts))

	return cmd
}

// withStore opens the store, runs fn and closes the store. Queued audit
// entries are flushed on close.
func withStore(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App, p *Printer) error) error {
	ctx := store.ContextWithActor(cmd.Context(), opts.Actor)
	p := newPrinter(cmd, opts.Output)

	a, err := opts.Open(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	if a.Mode == app.ModeDemo {
		p.Warn("running against the in-memory demo store; nothing is saved")
	}

	runErr := fn(ctx, a, p)
	if err := a.Close(ctx); err != nil {
		p.Warn("close: %v", err)
	}
	return runErr
}
