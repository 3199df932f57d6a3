package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/sheets"
)

var (
	// ErrNotFound is returned by Update and Delete when no row has the id.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable means the remote store kept failing transiently.
	// The operation made no change and may be retried.
	ErrUnavailable = sheets.ErrUnavailable

	// ErrAuditDegraded wraps Mutation.AuditErr when the audit row could not be
	// written and was queued instead. The mutation itself succeeded.
	ErrAuditDegraded = errors.New("audit log degraded")

	// ErrInUse is returned when deleting a row that other rows reference.
	ErrInUse = errors.New("record is referenced by other records")

	// ErrImmutable is returned for writes to append-only tables.
	ErrImmutable = errors.New("table is append-only")
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field problem found in one write.
type ValidationError struct {
	Entity schema.EntityType
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// validationErrors accumulates field errors for one write.
type validationErrors []FieldError

func (v *validationErrors) add(field, msg string) {
	*v = append(*v, FieldError{Field: field, Message: msg})
}

func (v validationErrors) err(t schema.EntityType) error {
	if len(v) == 0 {
		return nil
	}
	sorted := append([]FieldError(nil), v...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })
	return &ValidationError{Entity: t, Fields: sorted}
}
