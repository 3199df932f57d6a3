package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"

	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/metrics"
)

// ErrHeaderMismatch is returned by EnsureTable when a tab already exists with
// a different header row. The store refuses to write into it.
var ErrHeaderMismatch = errors.New("table header does not match schema")

// ErrNoSuchTable is returned when a row operation names a tab that does not exist.
var ErrNoSuchTable = errors.New("no such table")

// DefaultBatchSize is the maximum number of rows sent in one append call.
const DefaultBatchSize = 500

// Client is safe for concurrent use. The only mutable state is the cached
// tab-name to sheet-id map.
type Client struct {
	api       API
	policy    RetryPolicy
	metrics   *metrics.Metrics
	batchSize int

	mu       sync.RWMutex
	sheetIDs map[string]int64
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p.withDefaults() }
}

// WithMetrics instruments the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBatchSize caps the number of rows per append call.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// New wraps api with retry and addressing logic.
func New(api API, opts ...Option) *Client {
	c := &Client{
		api:       api,
		policy:    DefaultRetryPolicy(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureTable creates the tab and writes its header row if either is missing.
// Calling it again for a provisioned tab performs no writes.
func (c *Client) EnsureTable(ctx context.Context, name string, header []string) error {
	ids, err := c.listSheets(ctx, false)
	if err != nil {
		return err
	}

	if _, ok := ids[name]; !ok {
		if err := c.addSheet(ctx, name); err != nil {
			// Another process may have created the tab since we listed.
			fresh, lerr := c.listSheets(ctx, true)
			if lerr != nil {
				return err
			}
			if _, ok := fresh[name]; !ok {
				return err
			}
		}
	}

	var rows [][]string
	err = c.do(ctx, "read_header", func(ctx context.Context) error {
		var err error
		rows, err = c.api.GetValues(ctx, rowRange(name, 1, len(header)))
		return err
	})
	if err != nil {
		return err
	}

	if len(rows) == 0 || isBlank(rows[0]) {
		logging.FromContext(ctx).Info("writing table header", "table", name, "columns", len(header))
		return c.do(ctx, "write_header", func(ctx context.Context) error {
			return c.api.UpdateValues(ctx, rowRange(name, 1, len(header)), [][]string{header})
		})
	}

	if !sameRow(rows[0], header) {
		return fmt.Errorf("%w: %s has [%s], want [%s]", ErrHeaderMismatch, name,
			strings.Join(rows[0], ", "), strings.Join(header, ", "))
	}
	return nil
}

// ReadAll returns every data row of the tab in sheet order, header excluded.
// Row i of the result is the row addressed by index i in UpdateRow and
// DeleteRow, for as long as nobody else inserts or deletes rows.
func (c *Client) ReadAll(ctx context.Context, name string) ([][]string, error) {
	var rows [][]string
	err := c.do(ctx, "read_all", func(ctx context.Context) error {
		var err error
		rows, err = c.api.GetValues(ctx, quoteSheet(name))
		return err
	})
	if err != nil {
		// The API answers a range on a missing tab with 400 "Unable to parse range".
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			if _, idErr := c.sheetID(ctx, name); errors.Is(idErr, ErrNoSuchTable) {
				return nil, idErr
			}
		}
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// AppendRow appends one row after the last data row.
func (c *Client) AppendRow(ctx context.Context, name string, row []string) error {
	return c.AppendRows(ctx, name, [][]string{row})
}

// AppendRows appends rows in as few API calls as the batch size allows.
// Each batch is a single remote call, so a failure never leaves a partial batch.
func (c *Client) AppendRows(ctx context.Context, name string, rows [][]string) error {
	for start := 0; start < len(rows); start += c.batchSize {
		end := min(start+c.batchSize, len(rows))
		batch := rows[start:end]
		err := c.do(ctx, "append", func(ctx context.Context) error {
			return c.api.AppendValues(ctx, quoteSheet(name)+"!A1", batch)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateRow overwrites the data row at rowIndex.
func (c *Client) UpdateRow(ctx context.Context, name string, rowIndex int, row []string) error {
	if rowIndex < 0 {
		return fmt.Errorf("update %s: negative row index %d", name, rowIndex)
	}
	return c.do(ctx, "update", func(ctx context.Context) error {
		return c.api.UpdateValues(ctx, rowRange(name, rowIndex+2, len(row)), [][]string{row})
	})
}

// DeleteRow removes the data row at rowIndex; rows below shift up.
func (c *Client) DeleteRow(ctx context.Context, name string, rowIndex int) error {
	if rowIndex < 0 {
		return fmt.Errorf("delete %s: negative row index %d", name, rowIndex)
	}

	sheetID, err := c.sheetID(ctx, name)
	if err != nil {
		return err
	}

	// Sheet rows are zero-based here and the header occupies row 0.
	start := int64(rowIndex) + 1
	return c.do(ctx, "delete", func(ctx context.Context) error {
		return c.api.DeleteRows(ctx, sheetID, start, start+1)
	})
}

func (c *Client) sheetID(ctx context.Context, name string) (int64, error) {
	ids, err := c.listSheets(ctx, false)
	if err != nil {
		return 0, err
	}
	if id, ok := ids[name]; ok {
		return id, nil
	}

	ids, err = c.listSheets(ctx, true)
	if err != nil {
		return 0, err
	}
	if id, ok := ids[name]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNoSuchTable, name)
}

// listSheets returns the cached tab map, fetching it when empty or when
// refresh is set.
func (c *Client) listSheets(ctx context.Context, refresh bool) (map[string]int64, error) {
	if !refresh {
		c.mu.RLock()
		ids := c.sheetIDs
		c.mu.RUnlock()
		if ids != nil {
			return ids, nil
		}
	}

	var ids map[string]int64
	err := c.do(ctx, "list_sheets", func(ctx context.Context) error {
		var err error
		ids, err = c.api.ListSheets(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = make(map[string]int64)
	}

	c.mu.Lock()
	c.sheetIDs = ids
	c.mu.Unlock()
	return ids, nil
}

func (c *Client) addSheet(ctx context.Context, name string) error {
	var id int64
	err := c.do(ctx, "add_sheet", func(ctx context.Context) error {
		var err error
		id, err = c.api.AddSheet(ctx, name)
		return err
	})
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("created table", "table", name, "sheet_id", id)

	c.mu.Lock()
	next := make(map[string]int64, len(c.sheetIDs)+1)
	for k, v := range c.sheetIDs {
		next[k] = v
	}
	next[name] = id
	c.sheetIDs = next
	c.mu.Unlock()
	return nil
}

// do runs fn under the retry policy. Each attempt gets its own deadline.
// Transient failures that outlast the policy become ErrUnavailable; other
// failures are returned unchanged on the first attempt.
func (c *Client) do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	attempt := 0

	operation := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.policy.CallTimeout)
		defer cancel()

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.IncSheetsRetry(op)
		logging.FromContext(ctx).Warn("sheets call failed, retrying",
			"op", op,
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation, c.policy.newBackOff(ctx), notify)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		c.metrics.ObserveSheetsCall(op, "ok", elapsed)
		return nil
	case ctx.Err() != nil:
		c.metrics.ObserveSheetsCall(op, "cancelled", elapsed)
		return fmt.Errorf("sheets %s: %w", op, ctx.Err())
	case IsTransient(err):
		c.metrics.ObserveSheetsCall(op, "unavailable", elapsed)
		return fmt.Errorf("%w: sheets %s failed after %d attempts: %v", ErrUnavailable, op, attempt, err)
	default:
		c.metrics.ObserveSheetsCall(op, "rejected", elapsed)
		return fmt.Errorf("sheets %s: %w", op, err)
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sameRow compares two rows ignoring trailing empty cells, which the API omits.
func sameRow(got, want []string) bool {
	got = trimTrailing(got)
	want = trimTrailing(want)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}

func trimTrailing(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}
