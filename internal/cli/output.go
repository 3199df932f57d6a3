package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The store rejected the operation
	ExitCommandError = 2 // Bad arguments or the store could not be opened
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Printer writes command results as YAML or aligned tables. Warnings go to
// the error stream in yellow when it is a terminal.
type Printer struct {
	Format string
	Out    io.Writer
	Err    io.Writer

	warn *color.Color
	ok   *color.Color
}

func newPrinter(cmd *cobra.Command, format string) *Printer {
	return &Printer{
		Format: format,
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
		warn:   color.New(color.FgYellow),
		ok:     color.New(color.FgGreen),
	}
}

// Warn prints a highlighted warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.warn.Fprintf(p.Err, "warning: "+format+"\n", args...)
}

// Done prints a highlighted status line.
func (p *Printer) Done(format string, args ...any) {
	p.ok.Fprintf(p.Err, format+"\n", args...)
}

// YAML encodes v.
func (p *Printer) YAML(v any) error {
	enc := yaml.NewEncoder(p.Out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Records prints records in def's column order. Table output shows only
// columns that have a value in at least one record.
func (p *Printer) Records(def schema.Table, records []store.Record) error {
	if p.Format == "yaml" {
		if records == nil {
			records = []store.Record{}
		}
		return p.YAML(records)
	}

	var cols []string
	for _, h := range def.Header() {
		if h == schema.IDColumn || anySet(records, h) {
			cols = append(cols, h)
		}
	}

	tw := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
	for _, r := range records {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if c == schema.IDColumn {
				cells[i] = r.ID
			} else {
				cells[i] = oneLine(r.Fields[c])
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// Record prints one record as column: value lines.
func (p *Printer) Record(def schema.Table, r store.Record) error {
	if p.Format == "yaml" {
		return p.YAML(r)
	}
	tw := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s:\t%s\n", schema.IDColumn, r.ID)
	for _, c := range def.Columns {
		if v, ok := r.Fields[c.Name]; ok {
			fmt.Fprintf(tw, "%s:\t%s\n", c.Name, oneLine(v))
		}
	}
	return tw.Flush()
}

// Mutation prints the written record and reports a queued audit entry.
func (p *Printer) Mutation(def schema.Table, m store.Mutation) error {
	if !m.AuditOK() {
		p.Warn("%s %s saved but its audit entry %s is queued: %v", m.Action, m.Record.ID, m.AuditID, m.AuditErr)
	}
	if p.Format == "yaml" {
		return p.YAML(struct {
			Action  string       `yaml:"action"`
			AuditID string       `yaml:"audit_id"`
			Record  store.Record `yaml:"record"`
		}{m.Action, m.AuditID, m.Record})
	}
	p.Done("%s %s %s", m.Action, def.Type, m.Record.ID)
	return p.Record(def, m.Record)
}

func anySet(records []store.Record, col string) bool {
	for _, r := range records {
		if r.Fields[col] != "" {
			return true
		}
	}
	return false
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

// tableSummary is one line of `recordctl tables`.
type tableSummary struct {
	Entity     string   `yaml:"entity"`
	Name       string   `yaml:"name"`
	Prefix     string   `yaml:"prefix"`
	Delete     string   `yaml:"delete"`
	Columns    []string `yaml:"columns"`
	References []string `yaml:"references,omitempty"`
}

func summarize(def schema.Table) tableSummary {
	s := tableSummary{
		Entity: string(def.Type),
		Name:   def.Name,
		Prefix: def.Prefix,
		Delete: def.Delete.String(),
	}
	s.Columns, _ = schema.Header(def.Type)
	for _, c := range def.Columns {
		if c.References != "" {
			s.References = append(s.References, c.Name+"->"+string(c.References))
		}
	}
	sort.Strings(s.References)
	return s
}
