package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/metrics"
	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// DefaultAuditQueueSize bounds the number of audit entries held for retry.
const DefaultAuditQueueSize = 1000

// DefaultAuditAppendTimeout bounds how long a mutation waits for its audit
// write, including the wait for a write already in flight.
const DefaultAuditAppendTimeout = 5 * time.Second

const auditPrefix = "AUD"

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID         string            `json:"id" yaml:"id"`
	Timestamp  time.Time         `json:"timestamp" yaml:"timestamp"`
	Actor      string            `json:"actor" yaml:"actor"`
	Action     string            `json:"action" yaml:"action"`
	EntityType schema.EntityType `json:"entity_type" yaml:"entity_type"`
	EntityID   string            `json:"entity_id" yaml:"entity_id"`
	Details    string            `json:"details,omitempty" yaml:"details,omitempty"`
}

// fields returns the entry as audit table fields.
func (e AuditEntry) fields() Fields {
	f := Fields{
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339Nano),
		"actor":       e.Actor,
		"action":      e.Action,
		"entity_type": string(e.EntityType),
		"entity_id":   e.EntityID,
	}
	if e.Details != "" {
		f["details"] = e.Details
	}
	return f
}

// AuditSink persists audit entries in order, all or nothing.
type AuditSink interface {
	AppendAudit(ctx context.Context, entries []AuditEntry) error
}

// AuditLogger writes audit entries through a sink. When the sink fails the
// entry is kept in a bounded queue and written ahead of the next entry, so
// the log stays in write order once the sink recovers. When the queue is
// full the oldest entry is dropped and logged.
//
// One batch is written at a time. A caller that cannot start its write
// within the append timeout queues the entry instead of waiting.
type AuditLogger struct {
	sink    AuditSink
	size    int
	timeout time.Duration
	metrics *metrics.Metrics
	now     func() time.Time

	writing chan struct{} // holds a token while a batch is in flight

	mu      sync.Mutex
	pending []AuditEntry
	dropped int
}

// AuditOption configures an AuditLogger.
type AuditOption func(*AuditLogger)

// WithQueueSize sets the retry queue bound.
func WithQueueSize(n int) AuditOption {
	return func(a *AuditLogger) {
		if n > 0 {
			a.size = n
		}
	}
}

// WithAppendTimeout bounds the synchronous write in Append.
func WithAppendTimeout(d time.Duration) AuditOption {
	return func(a *AuditLogger) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithAuditMetrics reports the queue length.
func WithAuditMetrics(m *metrics.Metrics) AuditOption {
	return func(a *AuditLogger) { a.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) AuditOption {
	return func(a *AuditLogger) { a.now = now }
}

// NewAuditLogger creates a logger writing to sink.
func NewAuditLogger(sink AuditSink, opts ...AuditOption) *AuditLogger {
	a := &AuditLogger{
		sink:    sink,
		size:    DefaultAuditQueueSize,
		timeout: DefaultAuditAppendTimeout,
		now:     time.Now,
		writing: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append assigns the entry an id and timestamp and writes it after any
// queued entries. On failure the entry is queued and the returned error
// wraps ErrAuditDegraded; the entry is returned either way. The write runs
// under the append timeout and survives cancellation of ctx, since the data
// it describes is already stored.
func (a *AuditLogger) Append(ctx context.Context, e AuditEntry) (AuditEntry, error) {
	e.ID = auditPrefix + "-" + uuid.NewString()
	e.Timestamp = a.now().UTC()
	if e.Actor == "" {
		e.Actor = ActorFromContext(ctx)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	if err := a.acquire(ctx); err != nil {
		a.queue(ctx, e, "audit writer busy, entry queued", err)
		return e, fmt.Errorf("%w: %v", ErrAuditDegraded, err)
	}
	defer a.release()

	a.mu.Lock()
	batch := make([]AuditEntry, 0, len(a.pending)+1)
	batch = append(batch, a.pending...)
	a.mu.Unlock()
	batch = append(batch, e)

	if err := a.sink.AppendAudit(ctx, batch); err != nil {
		a.queue(ctx, e, "audit append failed, entry queued", err)
		return e, fmt.Errorf("%w: %v", ErrAuditDegraded, err)
	}

	if n := len(batch) - 1; n > 0 {
		a.mu.Lock()
		a.removeWritten(batch[:n])
		a.mu.Unlock()
		logging.FromContext(ctx).Info("audit queue flushed", "entries", n)
	}
	return e, nil
}

// Flush writes queued entries. It returns how many were written.
func (a *AuditLogger) Flush(ctx context.Context) (int, error) {
	if err := a.acquire(ctx); err != nil {
		return 0, fmt.Errorf("%w: flush: %v", ErrAuditDegraded, err)
	}
	defer a.release()

	a.mu.Lock()
	batch := append([]AuditEntry(nil), a.pending...)
	a.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}
	if err := a.sink.AppendAudit(ctx, batch); err != nil {
		return 0, fmt.Errorf("%w: flush %d entries: %v", ErrAuditDegraded, len(batch), err)
	}

	a.mu.Lock()
	a.removeWritten(batch)
	a.mu.Unlock()
	logging.FromContext(ctx).Info("audit queue flushed", "entries", len(batch))
	return len(batch), nil
}

func (a *AuditLogger) acquire(ctx context.Context) error {
	select {
	case a.writing <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AuditLogger) release() { <-a.writing }

func (a *AuditLogger) queue(ctx context.Context, e AuditEntry, msg string, err error) {
	a.mu.Lock()
	a.enqueue(ctx, e)
	n := len(a.pending)
	a.mu.Unlock()

	logging.FromContext(ctx).Warn(msg,
		"audit_id", e.ID,
		"entity", e.EntityType,
		"entity_id", e.EntityID,
		"pending", n,
		"error", err,
	)
}

// removeWritten drops written entries from the queue. Entries queued while
// the batch was in flight stay. Must be called with mu held.
func (a *AuditLogger) removeWritten(written []AuditEntry) {
	done := make(map[string]bool, len(written))
	for _, w := range written {
		done[w.ID] = true
	}
	kept := a.pending[:0]
	for _, p := range a.pending {
		if !done[p.ID] {
			kept = append(kept, p)
		}
	}
	a.pending = kept
	if len(a.pending) == 0 {
		a.pending = nil
	}
	a.metrics.SetAuditPending(len(a.pending))
}

// Pending returns the number of queued entries.
func (a *AuditLogger) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Dropped returns how many entries were discarded because the queue was full.
func (a *AuditLogger) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// enqueue must be called with mu held.
func (a *AuditLogger) enqueue(ctx context.Context, e AuditEntry) {
	a.pending = append(a.pending, e)
	if over := len(a.pending) - a.size; over > 0 {
		for _, lost := range a.pending[:over] {
			logging.FromContext(ctx).Warn("audit queue full, dropping oldest entry",
				"audit_id", lost.ID,
				"action", lost.Action,
				"entity", lost.EntityType,
				"entity_id", lost.EntityID,
			)
		}
		a.dropped += over
		a.pending = append([]AuditEntry(nil), a.pending[over:]...)
	}
	a.metrics.SetAuditPending(len(a.pending))
}

// auditDetails builds the details column: the payload under key plus the
// request metadata carried by ctx.
func auditDetails(ctx context.Context, key string, payload any) string {
	d := map[string]any{key: payload}
	ip, ua := requestMetadata(ctx)
	if ip != "" {
		d["ip"] = ip
	}
	if ua != "" {
		d["user_agent"] = ua
	}
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

// record writes the audit entry for a completed mutation and fills in the
// mutation's audit fields.
func (a *AuditLogger) record(ctx context.Context, m *Mutation, details string) {
	entry, err := a.Append(ctx, AuditEntry{
		Action:     m.Action,
		EntityType: m.Record.Type,
		EntityID:   m.Record.ID,
		Details:    details,
	})
	m.AuditID = entry.ID
	m.AuditErr = err
}
