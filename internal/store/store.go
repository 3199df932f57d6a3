// Package store is the schema-aware record store.
//
// Two implementations satisfy [Store]: [RecordStore] keeps every table in a
// remote spreadsheet, [DemoStore] keeps them in memory. Both validate writes
// against the schema registry, assign identifiers, refuse dangling references
// and record an audit entry for every mutation.
//
// A mutation reports two results. The returned error says whether the data
// was written. Mutation.AuditErr says whether the audit row was written; when
// it was not, the entry is queued and AuditErr wraps ErrAuditDegraded.
package store

import (
	"context"

	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// Store is implemented by RecordStore and DemoStore.
type Store interface {
	// Create validates fields, assigns an id and writes a new row.
	Create(ctx context.Context, t schema.EntityType, fields Fields) (Mutation, error)

	// Get returns the row with id. A missing row is ok == false, not an error.
	Get(ctx context.Context, t schema.EntityType, id string) (Record, bool, error)

	// List returns the rows matching q in table order.
	List(ctx context.Context, t schema.EntityType, q Query) ([]Record, error)

	// Update merges fields into the row with id. An empty value clears the field.
	Update(ctx context.Context, t schema.EntityType, id string, fields Fields) (Mutation, error)

	// Delete soft- or hard-deletes the row according to the table's policy.
	Delete(ctx context.Context, t schema.EntityType, id string) (Mutation, error)

	// ProvisionSchema makes sure every registered table exists with the
	// registered header. Safe to call repeatedly.
	ProvisionSchema(ctx context.Context) error

	// Audit exposes the audit logger for flushing and inspection.
	Audit() *AuditLogger
}

// Fields maps column name to cell value. The id column is never included.
type Fields map[string]string

// Clone returns a copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Record is one stored row. Unset cells are absent from Fields.
type Record struct {
	Type   schema.EntityType `json:"type" yaml:"type"`
	ID     string            `json:"id" yaml:"id"`
	Fields Fields            `json:"fields" yaml:"fields"`
}

// Mutation actions, as recorded in the audit log.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Mutation is the result of a successful write.
type Mutation struct {
	Record Record
	Action string
	// AuditID is the id of the audit entry, also set when it was only queued.
	AuditID string
	// AuditErr is non-nil when the audit row was queued rather than written.
	AuditErr error
}

// AuditOK reports whether the audit row was written synchronously.
func (m Mutation) AuditOK() bool { return m.AuditErr == nil }
