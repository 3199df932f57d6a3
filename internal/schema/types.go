// Package schema holds the static table definitions for every entity the
// record store knows about.
//
// Tables are registered at init time (see entities.go). Each [Table] lists its
// columns in sheet order, the semantic type of each column, which columns
// reference other tables, and how rows are deleted. The registry is pure:
// nothing here talks to the spreadsheet.
package schema

import "errors"

// ErrUnknownEntityType is returned when a caller asks about a type that was
// never registered. It indicates a programming error in the caller.
var ErrUnknownEntityType = errors.New("unknown entity type")

// IDColumn is the first column of every table.
const IDColumn = "id"

// EntityType names one logical table.
type EntityType string

const (
	Enquiry        EntityType = "Enquiry"
	Sponsor        EntityType = "Sponsor"
	Onboarding     EntityType = "Onboarding"
	Person         EntityType = "Person"
	PersonRole     EntityType = "PersonRole"
	Screening      EntityType = "Screening"
	RiskAssessment EntityType = "RiskAssessment"
	AuditLogEntry  EntityType = "AuditLogEntry"
)

// FieldType is the semantic type of a column. Cells are strings on the wire;
// the type only drives validation and normalisation.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
	FieldTimestamp
)

func (ft FieldType) String() string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	case FieldBool:
		return "bool"
	case FieldTimestamp:
		return "timestamp"
	default:
		return "value"
	}
}

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       FieldType
	Required   bool
	EnumValues []string
	References EntityType // non-empty when the column holds another entity's id
}

// DeletePolicy controls what Delete does for a table.
type DeletePolicy int

const (
	// DeleteSoft sets the status column to StatusDeleted and keeps the row.
	DeleteSoft DeletePolicy = iota
	// DeleteHard removes the row once no other table references it.
	DeleteHard
	// DeleteNever rejects deletes entirely (append-only tables).
	DeleteNever
)

func (p DeletePolicy) String() string {
	switch p {
	case DeleteSoft:
		return "soft"
	case DeleteHard:
		return "hard"
	default:
		return "never"
	}
}

// StatusColumn and StatusDeleted implement soft deletes.
const (
	StatusColumn  = "status"
	StatusDeleted = "deleted"
)

// Table is the registered definition of one entity type.
type Table struct {
	Type     EntityType
	Name     string // sheet tab name; derived from Type when empty
	Prefix   string // identifier prefix, e.g. "PER"
	Columns  []Column
	Delete   DeletePolicy
	ReadOnly bool // rows are written only by the store itself
}

// Header returns the header row: the id column followed by every column name.
func (t Table) Header() []string {
	h := make([]string, 0, len(t.Columns)+1)
	h = append(h, IDColumn)
	for _, c := range t.Columns {
		h = append(h, c.Name)
	}
	return h
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Index returns the position of a column within Header(), or -1.
func (t Table) Index(name string) int {
	if name == IDColumn {
		return 0
	}
	for i, c := range t.Columns {
		if c.Name == name {
			return i + 1
		}
	}
	return -1
}

// Reference is a (table, column) pair that points at another entity.
type Reference struct {
	From   EntityType
	Column string
}
