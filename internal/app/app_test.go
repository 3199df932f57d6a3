package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/JonMunkholm/sheetstore/internal/config"
	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/sheets"
	"github.com/JonMunkholm/sheetstore/internal/sheets/mocks"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Sheets: config.SheetsConfig{BatchSize: 500},
		Retry:  config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, CallTimeout: time.Second},
		Audit:  config.AuditConfig{QueueSize: 10},
	}
}

func TestOpen_DemoWithoutCredentials(t *testing.T) {
	a, err := Open(context.Background(), testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, ModeDemo, a.Mode)
	assert.IsType(t, &store.DemoStore{}, a.Store)

	m, err := a.Store.Create(context.Background(), schema.Person, store.Fields{"full_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "PER-0001", m.Record.ID)
}

func TestOpen_SheetsWithCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)

	var gotID, gotCreds string
	prev := newAPI
	newAPI = func(_ context.Context, id, creds string) (sheets.API, error) {
		gotID, gotCreds = id, creds
		return api, nil
	}
	defer func() { newAPI = prev }()

	cfg := testConfig()
	cfg.Sheets.SpreadsheetID = "sheet-123"
	cfg.Sheets.CredentialsFile = "/tmp/sa.json"

	a, err := Open(context.Background(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, ModeSheets, a.Mode)
	assert.IsType(t, &store.RecordStore{}, a.Store)
	assert.Equal(t, "sheet-123", gotID)
	assert.Equal(t, "/tmp/sa.json", gotCreds)

	api.EXPECT().GetValues(gomock.Any(), "'people'").Return([][]string{{"id", "full_name"}, {"PER-0001", "Ada"}}, nil)
	rec, ok, err := a.Store.Get(context.Background(), schema.Person, "PER-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ada", rec.Fields["full_name"])
}

func TestOpen_APIError(t *testing.T) {
	prev := newAPI
	newAPI = func(context.Context, string, string) (sheets.API, error) {
		return nil, errors.New("bad key")
	}
	defer func() { newAPI = prev }()

	cfg := testConfig()
	cfg.Sheets.SpreadsheetID = "sheet-123"
	cfg.Sheets.CredentialsFile = "/tmp/sa.json"

	_, err := Open(context.Background(), cfg, prometheus.NewRegistry())
	assert.ErrorContains(t, err, "bad key")
}

type flakySink struct {
	mu    sync.Mutex
	fail  bool
	count int
}

func (f *flakySink) AppendAudit(_ context.Context, entries []store.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("rate limited")
	}
	f.count += len(entries)
	return nil
}

func TestFlushOnce(t *testing.T) {
	sink := &flakySink{fail: true}
	audit := store.NewAuditLogger(sink)
	ctx := context.Background()

	_, err := audit.Append(ctx, store.AuditEntry{Action: store.ActionCreate, EntityType: schema.Person, EntityID: "PER-0001"})
	require.ErrorIs(t, err, store.ErrAuditDegraded)

	flushOnce(ctx, audit)
	assert.Equal(t, 1, audit.Pending())

	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()

	flushOnce(ctx, audit)
	assert.Zero(t, audit.Pending())
	assert.Equal(t, 1, sink.count)
}

func TestRunAuditFlusher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunAuditFlusher(ctx, store.NewAuditLogger(&flakySink{}), time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunAuditFlusher did not stop after cancel")
	}
}
