package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetstore/internal/app"
	"github.com/JonMunkholm/sheetstore/internal/extract"
	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

func newProvisionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create missing tables and check existing headers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				if err := a.Store.ProvisionSchema(ctx); err != nil {
					return err
				}
				p.Done("%d tables ready (%s store)", schema.TableCount(), a.Mode)
				return nil
			})
		},
	}
}

func newTablesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List registered tables and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd, opts.Output)
			all := schema.All()

			if p.Format == "yaml" {
				out := make([]tableSummary, len(all))
				for i, def := range all {
					out[i] = summarize(def)
				}
				return p.YAML(out)
			}

			records := make([]store.Record, len(all))
			for i, def := range all {
				s := summarize(def)
				records[i] = store.Record{ID: s.Name, Fields: store.Fields{
					"entity":     s.Entity,
					"prefix":     s.Prefix,
					"delete":     s.Delete,
					"columns":    fmt.Sprint(len(s.Columns)),
					"references": strings.Join(s.References, ","),
				}}
			}
			return p.Records(schema.Table{Columns: []schema.Column{
				{Name: "entity"}, {Name: "prefix"}, {Name: "delete"}, {Name: "columns"}, {Name: "references"},
			}}, records)
		},
	}
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := resolve(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				rec, ok, err := a.Store.Get(ctx, def.Type, args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s %s", store.ErrNotFound, def.Type, args[1])
				}
				return p.Record(def, rec)
			})
		},
	}
}

type listFlags struct {
	eq, contains, prefix []string
	offset, limit        int
}

func (f listFlags) query() (store.Query, error) {
	var q store.Query
	for _, set := range []struct {
		op    store.Op
		pairs []string
	}{
		{store.OpEq, f.eq},
		{store.OpContains, f.contains},
		{store.OpPrefix, f.prefix},
	} {
		for _, pair := range set.pairs {
			col, val, ok := strings.Cut(pair, "=")
			if !ok || col == "" {
				return q, NewExitError(ExitCommandError, fmt.Sprintf("--%s %q: want column=value", set.op, pair))
			}
			q.Conditions = append(q.Conditions, store.Condition{Column: col, Op: set.op, Value: val})
		}
	}
	q.Offset, q.Limit = f.offset, f.limit
	return q, nil
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List records, optionally filtered",
		Example: `  recordctl list people --contains full_name=ada
  recordctl list onboardings --eq status=open --limit 20 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := resolve(args[0])
			if err != nil {
				return err
			}
			q, err := flags.query()
			if err != nil {
				return err
			}
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				records, err := a.Store.List(ctx, def.Type, q)
				if err != nil {
					return err
				}
				return p.Records(def, records)
			})
		},
	}

	cmd.Flags().StringArrayVar(&flags.eq, "eq", nil, "column=value, exact match (repeatable)")
	cmd.Flags().StringArrayVar(&flags.contains, "contains", nil, "column=value, case-insensitive substring (repeatable)")
	cmd.Flags().StringArrayVar(&flags.prefix, "prefix", nil, "column=value, case-insensitive prefix (repeatable)")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "skip this many matches")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "return at most this many matches (0 = all)")
	return cmd
}

// parseSet turns repeated --set column=value flags into fields.
func parseSet(pairs []string) (store.Fields, error) {
	f := make(store.Fields, len(pairs))
	for _, pair := range pairs {
		col, val, ok := strings.Cut(pair, "=")
		if !ok || col == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("--set %q: want column=value", pair))
		}
		f[col] = val
	}
	return f, nil
}

func newCreateCommand(opts *RootOptions) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:     "create <entity>",
		Short:   "Create a record",
		Example: `  recordctl create people --set full_name="Ada Lovelace" --set date_of_birth=1815-12-10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := resolve(args[0])
			if err != nil {
				return err
			}
			fields, err := parseSet(set)
			if err != nil {
				return err
			}
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				m, err := a.Store.Create(ctx, def.Type, fields)
				if err != nil {
					return err
				}
				return p.Mutation(def, m)
			})
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "column=value (repeatable)")
	return cmd
}

func newUpdateCommand(opts *RootOptions) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:   "update <entity> <id>",
		Short: "Change fields of a record; an empty value clears the field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := resolve(args[0])
			if err != nil {
				return err
			}
			fields, err := parseSet(set)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return NewExitError(ExitCommandError, "nothing to update: pass at least one --set")
			}
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				m, err := a.Store.Update(ctx, def.Type, args[1], fields)
				if err != nil {
					return err
				}
				return p.Mutation(def, m)
			})
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "column=value (repeatable)")
	return cmd
}

func newExtractCommand(opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "extract <entity> <file>",
		Short: "Create a record from a YAML or JSON document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := resolve(args[0])
			if err != nil {
				return err
			}
			body, err := os.ReadFile(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "read document", err)
			}
			draft, err := extract.StructuredExtractor{}.Extract(cmd.Context(), extract.Document{
				Name: filepath.Base(args[1]),
				Body: body,
			})
			if err != nil {
				return err
			}
			if draft.Type != "" && draft.Type != def.Type {
				return fmt.Errorf("%w: %s describes %s, not %s", extract.ErrExtraction, args[1], draft.Type, def.Type)
			}

			if dryRun {
				p := newPrinter(cmd, opts.Output)
				cols, err := schema.Columns(def.Type)
				if err != nil {
					return err
				}
				for _, c := range cols {
					if c.Name == schema.IDColumn {
						continue
					}
					if err := schema.ValidateCell(draft.Fields[c.Name], c); err != nil {
						p.Warn("%s: %v", c.Name, err)
					}
				}
				return p.Record(def, store.Record{Type: def.Type, Fields: store.Fields(draft.Fields)})
			}
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				m, err := a.Store.Create(ctx, def.Type, store.Fields(draft.Fields))
				if err != nil {
					return err
				}
				return p.Mutation(def, m)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the extracted fields without creating a record")
	return cmd
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record according to the table's delete policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := resolve(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				m, err := a.Store.Delete(ctx, def.Type, args[1])
				if err != nil {
					return err
				}
				return p.Mutation(def, m)
			})
		},
	}
}

func newAuditCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Write audit entries queued by this process",
		Long: `Write audit entries queued in this process's memory.

The queue does not survive restarts, so this is mostly useful from scripts
that perform several writes and want to retry a degraded audit log before
exiting. The server flushes on its own schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, a *app.App, p *Printer) error {
				n, err := a.Store.Audit().Flush(ctx)
				if err != nil {
					return err
				}
				p.Done("flushed %d audit entries", n)
				return nil
			})
		},
	})
	return cmd
}

func resolve(name string) (schema.Table, error) {
	t, err := schema.Resolve(name)
	if err != nil {
		return schema.Table{}, WrapExitError(ExitCommandError, "unknown table", err)
	}
	return schema.Lookup(t)
}
