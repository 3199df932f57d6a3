// Package app wires configuration into a ready record store. Both binaries
// call Open once at start-up; the remote or demo choice made there holds for
// the life of the process.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/sheetstore/internal/config"
	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/metrics"
	"github.com/JonMunkholm/sheetstore/internal/sheets"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

// Mode names the store implementation in use.
type Mode string

const (
	ModeSheets Mode = "sheets"
	ModeDemo   Mode = "demo"
)

// App holds the opened store and what it needs at shutdown.
type App struct {
	Store   store.Store
	Mode    Mode
	Metrics *metrics.Metrics

	closers []func() error
}

// newAPI is replaced in tests.
var newAPI = sheets.NewGoogleAPI

// Open builds the store selected by cfg. Metrics are registered with reg.
func Open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	m := metrics.New(reg)
	a := &App{Metrics: m}

	opts := store.Options{
		Metrics:      m,
		AuditOptions: []store.AuditOption{
			store.WithQueueSize(cfg.Audit.QueueSize),
			store.WithAppendTimeout(cfg.Audit.AppendTimeout),
		},
	}

	if !cfg.HasRemoteCredentials() {
		a.Mode = ModeDemo
		a.Store = store.NewDemoStore(opts)
		logging.FromContext(ctx).Warn("no spreadsheet credentials configured, using in-memory demo store")
		return a, nil
	}

	api, err := newAPI(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	client := sheets.New(api,
		sheets.WithRetryPolicy(sheets.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			CallTimeout: cfg.Retry.CallTimeout,
			Jitter:      cfg.Retry.Jitter,
		}),
		sheets.WithMetrics(m),
		sheets.WithBatchSize(cfg.Sheets.BatchSize),
	)

	seq, err := store.NewRedisSequence(ctx, cfg.IDs.RedisURL, cfg.Sheets.SpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("open id sequence: %w", err)
	}
	if seq != nil {
		opts.Sequence = seq
		a.closers = append(a.closers, seq.Close)
		logging.FromContext(ctx).Info("using shared id sequence")
	}

	a.Mode = ModeSheets
	a.Store = store.NewRecordStore(client, opts)
	logging.FromContext(ctx).Info("using spreadsheet store", "spreadsheet_id", cfg.Sheets.SpreadsheetID)
	return a, nil
}

// Close releases connections and reports audit entries that never made it
// to the log.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if n := a.Store.Audit().Pending(); n > 0 {
		if _, err := a.Store.Audit().Flush(ctx); err != nil {
			logging.FromContext(ctx).Error("audit entries lost at shutdown", "entries", n, "error", err)
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
