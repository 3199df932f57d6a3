package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/metrics"
	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// DemoStore keeps every table in memory. It is used when no spreadsheet
// credentials are configured and loses its contents on restart.
type DemoStore struct {
	audit   *AuditLogger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	tables map[schema.EntityType]*demoTable
}

var _ Store = (*DemoStore)(nil)

type demoTable struct {
	order []string
	rows  map[string]Fields
	seq   int
}

func newDemoTable() *demoTable {
	return &demoTable{rows: make(map[string]Fields)}
}

// NewDemoStore creates an empty in-memory store. opts.Sequence is ignored.
func NewDemoStore(opts Options) *DemoStore {
	d := &DemoStore{
		metrics: opts.Metrics,
		tables:  make(map[schema.EntityType]*demoTable),
	}
	auditOpts := append([]AuditOption{WithAuditMetrics(opts.Metrics)}, opts.AuditOptions...)
	d.audit = NewAuditLogger(&demoAuditSink{d: d}, auditOpts...)
	return d
}

// Audit returns the store's audit logger.
func (d *DemoStore) Audit() *AuditLogger { return d.audit }

func (d *DemoStore) ProvisionSchema(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, def := range schema.All() {
		d.table(def.Type)
	}
	return nil
}

func (d *DemoStore) Get(ctx context.Context, t schema.EntityType, id string) (Record, bool, error) {
	if _, err := schema.Lookup(t); err != nil {
		return Record{}, false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	tbl, ok := d.tables[t]
	if !ok {
		return Record{}, false, nil
	}
	f, ok := tbl.rows[id]
	if !ok {
		return Record{}, false, nil
	}
	return Record{Type: t, ID: id, Fields: f.Clone()}, true, nil
}

func (d *DemoStore) List(ctx context.Context, t schema.EntityType, q Query) ([]Record, error) {
	def, err := schema.Lookup(t)
	if err != nil {
		return nil, err
	}
	if err := q.validate(def); err != nil {
		return nil, err
	}

	d.mu.RLock()
	records := d.snapshot(t)
	d.mu.RUnlock()

	return q.apply(records), nil
}

func (d *DemoStore) Create(ctx context.Context, t schema.EntityType, fields Fields) (Mutation, error) {
	def, err := writableTable(t)
	if err != nil {
		return Mutation{}, err
	}
	clean, err := prepareCreate(def, fields)
	if err != nil {
		return Mutation{}, err
	}

	d.mu.Lock()
	if err := d.checkReferences(def, clean); err != nil {
		d.mu.Unlock()
		return Mutation{}, err
	}
	tbl := d.table(t)
	tbl.seq++
	id := FormatID(def.Prefix, tbl.seq)
	tbl.rows[id] = clean
	tbl.order = append(tbl.order, id)
	d.mu.Unlock()

	m := Mutation{Record: Record{Type: t, ID: id, Fields: clean.Clone()}, Action: ActionCreate}
	d.audit.record(ctx, &m, auditDetails(ctx, "fields", clean))
	d.acknowledge(ctx, m)
	return m, nil
}

func (d *DemoStore) Update(ctx context.Context, t schema.EntityType, id string, fields Fields) (Mutation, error) {
	def, err := writableTable(t)
	if err != nil {
		return Mutation{}, err
	}
	patch, errs := normalizeFields(def, fields)
	if err := errs.err(t); err != nil {
		return Mutation{}, err
	}

	d.mu.Lock()
	current, ok := d.table(t).rows[id]
	if !ok {
		d.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: %s %s", ErrNotFound, t, id)
	}
	if err := d.checkReferences(def, changedValues(current, patch)); err != nil {
		d.mu.Unlock()
		return Mutation{}, err
	}
	merged, changes, err := prepareUpdate(def, current, patch)
	if err != nil {
		d.mu.Unlock()
		return Mutation{}, err
	}
	if len(changes) == 0 {
		d.mu.Unlock()
		return Mutation{Record: Record{Type: t, ID: id, Fields: merged}, Action: ActionUpdate}, nil
	}
	d.tables[t].rows[id] = merged
	d.mu.Unlock()

	m := Mutation{Record: Record{Type: t, ID: id, Fields: merged.Clone()}, Action: ActionUpdate}
	d.audit.record(ctx, &m, auditDetails(ctx, "changes", changes))
	d.acknowledge(ctx, m, "changed", changedColumns(changes))
	return m, nil
}

func (d *DemoStore) Delete(ctx context.Context, t schema.EntityType, id string) (Mutation, error) {
	def, err := deletableTable(t)
	if err != nil {
		return Mutation{}, err
	}

	d.mu.Lock()
	tbl := d.table(t)
	current, ok := tbl.rows[id]
	if !ok || (def.Delete == schema.DeleteSoft && current[schema.StatusColumn] == schema.StatusDeleted) {
		d.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: %s %s", ErrNotFound, t, id)
	}

	var (
		m       Mutation
		details string
	)
	if def.Delete == schema.DeleteSoft {
		merged, changes := markDeleted(current)
		tbl.rows[id] = merged
		m = Mutation{Record: Record{Type: t, ID: id, Fields: merged.Clone()}, Action: ActionDelete}
		details = auditDetails(ctx, "changes", changes)
	} else {
		if err := d.checkDependents(t, id); err != nil {
			d.mu.Unlock()
			return Mutation{}, err
		}
		delete(tbl.rows, id)
		tbl.order = slices.DeleteFunc(tbl.order, func(s string) bool { return s == id })
		m = Mutation{Record: Record{Type: t, ID: id, Fields: current}, Action: ActionDelete}
		details = auditDetails(ctx, "fields", current)
	}
	d.mu.Unlock()

	d.audit.record(ctx, &m, details)
	d.acknowledge(ctx, m, "soft", def.Delete == schema.DeleteSoft)
	return m, nil
}

// table returns the table for t, creating it. Caller holds the write lock.
func (d *DemoStore) table(t schema.EntityType) *demoTable {
	tbl, ok := d.tables[t]
	if !ok {
		tbl = newDemoTable()
		d.tables[t] = tbl
	}
	return tbl
}

// snapshot copies the records of t in insertion order. Caller holds a lock.
func (d *DemoStore) snapshot(t schema.EntityType) []Record {
	tbl, ok := d.tables[t]
	if !ok {
		return nil
	}
	records := make([]Record, 0, len(tbl.order))
	for _, id := range tbl.order {
		records = append(records, Record{Type: t, ID: id, Fields: tbl.rows[id].Clone()})
	}
	return records
}

// checkReferences is RecordStore.checkReferences against memory.
// Caller holds the write lock.
func (d *DemoStore) checkReferences(def schema.Table, f Fields) error {
	var errs validationErrors
	for target, wanted := range referencedIDs(def, f) {
		live := liveIDs(d.snapshot(target))
		for _, ref := range wanted {
			if !live[ref.id] {
				errs.add(ref.column, fmt.Sprintf("no %s with id %s", target, ref.id))
			}
		}
	}
	return errs.err(def.Type)
}

// checkDependents is RecordStore.checkDependents against memory.
// Caller holds the write lock.
func (d *DemoStore) checkDependents(t schema.EntityType, id string) error {
	for _, ref := range schema.Dependents(t) {
		if holder, col, ok := findReference(d.snapshot(ref.From), []string{ref.Column}, id); ok {
			return fmt.Errorf("%w: %s %s is referenced by %s %s (%s)", ErrInUse, t, id, ref.From, holder, col)
		}
	}
	return nil
}

func (d *DemoStore) acknowledge(ctx context.Context, m Mutation, args ...any) {
	d.metrics.IncMutation(string(m.Record.Type), m.Action, m.AuditOK())
	logging.FromContext(ctx).Debug("demo record "+m.Action+"d",
		append([]any{"entity", m.Record.Type, "id", m.Record.ID, "audit_id", m.AuditID}, args...)...)
}

// demoAuditSink writes audit entries into the store's own audit table.
type demoAuditSink struct {
	d *DemoStore
}

func (s *demoAuditSink) AppendAudit(ctx context.Context, entries []AuditEntry) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	tbl := s.d.table(schema.AuditLogEntry)
	for _, e := range entries {
		tbl.rows[e.ID] = e.fields()
		tbl.order = append(tbl.order, e.ID)
	}
	return nil
}
