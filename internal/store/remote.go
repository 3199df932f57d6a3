package store

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/metrics"
	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// TableClient is the row-level view of the spreadsheet that RecordStore
// needs. *sheets.Client implements it.
type TableClient interface {
	EnsureTable(ctx context.Context, name string, header []string) error
	ReadAll(ctx context.Context, name string) ([][]string, error)
	AppendRow(ctx context.Context, name string, row []string) error
	AppendRows(ctx context.Context, name string, rows [][]string) error
	UpdateRow(ctx context.Context, name string, rowIndex int, row []string) error
	DeleteRow(ctx context.Context, name string, rowIndex int) error
}

// RecordStore keeps every table in a spreadsheet. It holds no row cache:
// each operation reads the tables it needs, so results are never staler
// than the request that produced them.
type RecordStore struct {
	client  TableClient
	ids     *IDGenerator
	audit   *AuditLogger
	metrics *metrics.Metrics
}

var _ Store = (*RecordStore)(nil)

// Options shared by RecordStore and DemoStore.
type Options struct {
	Sequence     Sequence
	Metrics      *metrics.Metrics
	AuditOptions []AuditOption
}

// NewRecordStore creates a store on top of client.
func NewRecordStore(client TableClient, opts Options) *RecordStore {
	s := &RecordStore{client: client, metrics: opts.Metrics}
	s.ids = NewIDGenerator(s.scanIDs, opts.Sequence)

	auditOpts := append([]AuditOption{WithAuditMetrics(opts.Metrics)}, opts.AuditOptions...)
	s.audit = NewAuditLogger(&remoteAuditSink{client: client}, auditOpts...)
	return s
}

// Audit returns the store's audit logger.
func (s *RecordStore) Audit() *AuditLogger { return s.audit }

// ProvisionSchema creates missing tabs and header rows, one table at a time
// to stay inside the API's write quota.
func (s *RecordStore) ProvisionSchema(ctx context.Context) error {
	for _, def := range schema.All() {
		if err := s.client.EnsureTable(ctx, def.Name, def.Header()); err != nil {
			return fmt.Errorf("provision %s: %w", def.Name, err)
		}
	}
	logging.FromContext(ctx).Info("schema provisioned", "tables", schema.TableCount())
	return nil
}

func (s *RecordStore) Get(ctx context.Context, t schema.EntityType, id string) (Record, bool, error) {
	def, err := schema.Lookup(t)
	if err != nil {
		return Record{}, false, err
	}
	rec, _, ok, err := s.locate(ctx, def, id)
	return rec, ok, err
}

func (s *RecordStore) List(ctx context.Context, t schema.EntityType, q Query) ([]Record, error) {
	def, err := schema.Lookup(t)
	if err != nil {
		return nil, err
	}
	if err := q.validate(def); err != nil {
		return nil, err
	}
	records, err := s.readTable(ctx, def)
	if err != nil {
		return nil, err
	}
	return q.apply(records), nil
}

func (s *RecordStore) Create(ctx context.Context, t schema.EntityType, fields Fields) (Mutation, error) {
	def, err := writableTable(t)
	if err != nil {
		return Mutation{}, err
	}

	clean, err := prepareCreate(def, fields)
	if err != nil {
		return Mutation{}, err
	}
	if err := s.checkReferences(ctx, def, clean); err != nil {
		return Mutation{}, err
	}

	id, err := s.ids.Next(ctx, t)
	if err != nil {
		return Mutation{}, err
	}
	if err := s.client.AppendRow(ctx, def.Name, toRow(def, id, clean)); err != nil {
		return Mutation{}, fmt.Errorf("create %s: %w", t, err)
	}

	m := Mutation{Record: Record{Type: t, ID: id, Fields: clean}, Action: ActionCreate}
	s.audit.record(ctx, &m, auditDetails(ctx, "fields", clean))
	s.acknowledge(ctx, m)
	return m, nil
}

func (s *RecordStore) Update(ctx context.Context, t schema.EntityType, id string, fields Fields) (Mutation, error) {
	def, err := writableTable(t)
	if err != nil {
		return Mutation{}, err
	}

	patch, errs := normalizeFields(def, fields)
	if err := errs.err(t); err != nil {
		return Mutation{}, err
	}

	current, index, found, err := s.locate(ctx, def, id)
	if err != nil {
		return Mutation{}, err
	}
	if !found {
		return Mutation{}, fmt.Errorf("%w: %s %s", ErrNotFound, t, id)
	}
	// Unchanged references were valid when written; only new targets must be live.
	if err := s.checkReferences(ctx, def, changedValues(current.Fields, patch)); err != nil {
		return Mutation{}, err
	}

	merged, changes, err := prepareUpdate(def, current.Fields, patch)
	if err != nil {
		return Mutation{}, err
	}
	rec := Record{Type: t, ID: id, Fields: merged}
	if len(changes) == 0 {
		return Mutation{Record: rec, Action: ActionUpdate}, nil
	}

	if err := s.client.UpdateRow(ctx, def.Name, index, toRow(def, id, merged)); err != nil {
		return Mutation{}, fmt.Errorf("update %s %s: %w", t, id, err)
	}

	m := Mutation{Record: rec, Action: ActionUpdate}
	s.audit.record(ctx, &m, auditDetails(ctx, "changes", changes))
	s.acknowledge(ctx, m, "changed", changedColumns(changes))
	return m, nil
}

func (s *RecordStore) Delete(ctx context.Context, t schema.EntityType, id string) (Mutation, error) {
	def, err := deletableTable(t)
	if err != nil {
		return Mutation{}, err
	}

	if def.Delete == schema.DeleteSoft {
		return s.softDelete(ctx, def, id)
	}
	return s.hardDelete(ctx, def, id)
}

func (s *RecordStore) softDelete(ctx context.Context, def schema.Table, id string) (Mutation, error) {
	current, index, found, err := s.locate(ctx, def, id)
	if err != nil {
		return Mutation{}, err
	}
	if !found || current.Fields[schema.StatusColumn] == schema.StatusDeleted {
		return Mutation{}, fmt.Errorf("%w: %s %s", ErrNotFound, def.Type, id)
	}

	merged, changes := markDeleted(current.Fields)
	if err := s.client.UpdateRow(ctx, def.Name, index, toRow(def, id, merged)); err != nil {
		return Mutation{}, fmt.Errorf("delete %s %s: %w", def.Type, id, err)
	}

	m := Mutation{Record: Record{Type: def.Type, ID: id, Fields: merged}, Action: ActionDelete}
	s.audit.record(ctx, &m, auditDetails(ctx, "changes", changes))
	s.acknowledge(ctx, m, "soft", true)
	return m, nil
}

func (s *RecordStore) hardDelete(ctx context.Context, def schema.Table, id string) (Mutation, error) {
	var (
		current Record
		index   int
		found   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, index, found, err = s.locate(gctx, def, id)
		return err
	})
	g.Go(func() error {
		return s.checkDependents(gctx, def.Type, id)
	})
	if err := g.Wait(); err != nil {
		return Mutation{}, err
	}
	if !found {
		return Mutation{}, fmt.Errorf("%w: %s %s", ErrNotFound, def.Type, id)
	}

	if err := s.client.DeleteRow(ctx, def.Name, index); err != nil {
		return Mutation{}, fmt.Errorf("delete %s %s: %w", def.Type, id, err)
	}

	m := Mutation{Record: current, Action: ActionDelete}
	s.audit.record(ctx, &m, auditDetails(ctx, "fields", current.Fields))
	s.acknowledge(ctx, m, "soft", false)
	return m, nil
}

// readTable returns every record of def in sheet order.
func (s *RecordStore) readTable(ctx context.Context, def schema.Table) ([]Record, error) {
	rows, err := s.client.ReadAll(ctx, def.Name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", def.Name, err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if rec, ok := fromRow(def, row); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// locate finds id and its data-row index in a fresh snapshot.
func (s *RecordStore) locate(ctx context.Context, def schema.Table, id string) (Record, int, bool, error) {
	rows, err := s.client.ReadAll(ctx, def.Name)
	if err != nil {
		return Record{}, -1, false, fmt.Errorf("read %s: %w", def.Name, err)
	}
	for i, row := range rows {
		if rec, ok := fromRow(def, row); ok && rec.ID == id {
			return rec, i, true, nil
		}
	}
	return Record{}, -1, false, nil
}

func (s *RecordStore) scanIDs(ctx context.Context, t schema.EntityType) ([]string, error) {
	def, err := schema.Lookup(t)
	if err != nil {
		return nil, err
	}
	records, err := s.readTable(ctx, def)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids, nil
}

// checkReferences verifies that every reference in f points at a live row.
// Each referenced table is read once, concurrently.
func (s *RecordStore) checkReferences(ctx context.Context, def schema.Table, f Fields) error {
	refs := referencedIDs(def, f)
	if len(refs) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs validationErrors
	)
	g, gctx := errgroup.WithContext(ctx)
	for target, wanted := range refs {
		g.Go(func() error {
			tdef, err := schema.Lookup(target)
			if err != nil {
				return err
			}
			records, err := s.readTable(gctx, tdef)
			if err != nil {
				return err
			}
			live := liveIDs(records)

			mu.Lock()
			defer mu.Unlock()
			for _, ref := range wanted {
				if !live[ref.id] {
					errs.add(ref.column, fmt.Sprintf("no %s with id %s", target, ref.id))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errs.err(def.Type)
}

// checkDependents returns ErrInUse when any row in a referencing table
// points at id. Dependent tables are scanned concurrently.
func (s *RecordStore) checkDependents(ctx context.Context, t schema.EntityType, id string) error {
	byTable := make(map[schema.EntityType][]string)
	for _, ref := range schema.Dependents(t) {
		byTable[ref.From] = append(byTable[ref.From], ref.Column)
	}

	g, gctx := errgroup.WithContext(ctx)
	for from, columns := range byTable {
		g.Go(func() error {
			def, err := schema.Lookup(from)
			if err != nil {
				return err
			}
			records, err := s.readTable(gctx, def)
			if err != nil {
				return err
			}
			if holder, col, ok := findReference(records, columns, id); ok {
				return fmt.Errorf("%w: %s %s is referenced by %s %s (%s)", ErrInUse, t, id, from, holder, col)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *RecordStore) acknowledge(ctx context.Context, m Mutation, args ...any) {
	s.metrics.IncMutation(string(m.Record.Type), m.Action, m.AuditOK())
	logging.FromContext(ctx).Info("record "+m.Action+"d",
		append([]any{"entity", m.Record.Type, "id", m.Record.ID, "audit_id", m.AuditID, "audit_ok", m.AuditOK()}, args...)...)
}

// remoteAuditSink appends audit entries to the audit table in one call per
// batch.
type remoteAuditSink struct {
	client TableClient
}

func (r *remoteAuditSink) AppendAudit(ctx context.Context, entries []AuditEntry) error {
	def, err := schema.Lookup(schema.AuditLogEntry)
	if err != nil {
		return err
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = toRow(def, e.ID, e.fields())
	}
	return r.client.AppendRows(ctx, def.Name, rows)
}

// writableTable rejects creates and updates on append-only tables.
func writableTable(t schema.EntityType) (schema.Table, error) {
	def, err := schema.Lookup(t)
	if err != nil {
		return schema.Table{}, err
	}
	if def.ReadOnly {
		return schema.Table{}, fmt.Errorf("%w: %s", ErrImmutable, t)
	}
	return def, nil
}

// deletableTable rejects deletes on tables that never delete.
func deletableTable(t schema.EntityType) (schema.Table, error) {
	def, err := schema.Lookup(t)
	if err != nil {
		return schema.Table{}, err
	}
	if def.ReadOnly || def.Delete == schema.DeleteNever {
		return schema.Table{}, fmt.Errorf("%w: %s", ErrImmutable, t)
	}
	return def, nil
}

// liveIDs returns the ids of records that are not soft-deleted.
func liveIDs(records []Record) map[string]bool {
	ids := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Fields[schema.StatusColumn] != schema.StatusDeleted {
			ids[r.ID] = true
		}
	}
	return ids
}

// findReference returns the first record whose columns hold id.
func findReference(records []Record, columns []string, id string) (string, string, bool) {
	for _, r := range records {
		for _, c := range columns {
			if r.Fields[c] == id {
				return r.ID, c, true
			}
		}
	}
	return "", "", false
}
