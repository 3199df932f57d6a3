package store

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// normalizeFields checks every supplied field against def and returns the
// canonical values. Empty values are kept as "" so updates can clear fields.
func normalizeFields(def schema.Table, fields Fields) (Fields, validationErrors) {
	var errs validationErrors
	out := make(Fields, len(fields))

	for name, value := range fields {
		if name == schema.IDColumn {
			errs.add(name, "is assigned by the store")
			continue
		}
		col, ok := def.Column(name)
		if !ok {
			errs.add(name, "unknown field")
			continue
		}
		norm, err := schema.Normalize(value, col)
		if err != nil {
			errs.add(name, err.Error())
			continue
		}
		out[name] = norm
	}
	return out, errs
}

// checkRequired reports required columns that are unset in f.
func checkRequired(def schema.Table, f Fields, errs *validationErrors) {
	for _, col := range def.Columns {
		if col.Required && f[col.Name] == "" {
			errs.add(col.Name, "required")
		}
	}
}

// prepareCreate validates a new row and drops empty values.
func prepareCreate(def schema.Table, fields Fields) (Fields, error) {
	norm, errs := normalizeFields(def, fields)
	for k, v := range norm {
		if v == "" {
			delete(norm, k)
		}
	}
	checkRequired(def, norm, &errs)
	if err := errs.err(def.Type); err != nil {
		return nil, err
	}
	return norm, nil
}

// change is one field's before and after value in an update.
type change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// prepareUpdate merges patch into current, validates the result and returns
// it with the fields that actually changed.
func prepareUpdate(def schema.Table, current, patch Fields) (Fields, map[string]change, error) {
	norm, errs := normalizeFields(def, patch)

	merged := current.Clone()
	changes := make(map[string]change)
	for k, v := range norm {
		old := merged[k]
		if v == "" {
			delete(merged, k)
		} else {
			merged[k] = v
		}
		if old != v {
			changes[k] = change{Old: old, New: v}
		}
	}

	checkRequired(def, merged, &errs)
	if err := errs.err(def.Type); err != nil {
		return nil, nil, err
	}
	return merged, changes, nil
}

// changedValues returns the entries of patch that differ from current.
func changedValues(current, patch Fields) Fields {
	out := make(Fields, len(patch))
	for k, v := range patch {
		if current[k] != v {
			out[k] = v
		}
	}
	return out
}

// referencedIDs groups the non-empty reference values in f by target table.
// Only fields present in f are considered.
func referencedIDs(def schema.Table, f Fields) map[schema.EntityType][]reference {
	refs := make(map[schema.EntityType][]reference)
	for _, col := range def.Columns {
		if col.References == "" {
			continue
		}
		if v := f[col.Name]; v != "" {
			refs[col.References] = append(refs[col.References], reference{column: col.Name, id: v})
		}
	}
	return refs
}

type reference struct {
	column string
	id     string
}

// toRow lays out a record in header order.
func toRow(def schema.Table, id string, f Fields) []string {
	row := make([]string, len(def.Columns)+1)
	row[0] = id
	for i, col := range def.Columns {
		row[i+1] = f[col.Name]
	}
	return row
}

// fromRow converts a sheet row to a record. Short rows are padded; rows
// without an id are skipped (ok == false).
func fromRow(def schema.Table, row []string) (Record, bool) {
	if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
		return Record{}, false
	}
	rec := Record{Type: def.Type, ID: strings.TrimSpace(row[0]), Fields: make(Fields)}
	for i, col := range def.Columns {
		if i+1 >= len(row) {
			break
		}
		if v := row[i+1]; v != "" {
			rec.Fields[col.Name] = v
		}
	}
	return rec, true
}

// changedColumns lists changed field names, sorted.
func changedColumns(changes map[string]change) []string {
	names := make([]string, 0, len(changes))
	for k := range changes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// markDeleted returns f with the status set to deleted, skipping validation
// so rows edited by hand can still be retired.
func markDeleted(f Fields) (Fields, map[string]change) {
	merged := f.Clone()
	old := merged[schema.StatusColumn]
	merged[schema.StatusColumn] = schema.StatusDeleted
	return merged, map[string]change{schema.StatusColumn: {Old: old, New: schema.StatusDeleted}}
}
