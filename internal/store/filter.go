package store

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// Op is a filter comparison.
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
	OpPrefix   Op = "prefix"
)

// Condition restricts one column. The id column may be filtered too.
type Condition struct {
	Column string
	Op     Op
	Value  string
}

// Query selects rows for List. All conditions must hold.
// Limit <= 0 means no limit.
type Query struct {
	Conditions []Condition
	Offset     int
	Limit      int
}

// Where appends an equality condition and returns the query.
func (q Query) Where(column, value string) Query {
	q.Conditions = append(q.Conditions, Condition{Column: column, Op: OpEq, Value: value})
	return q
}

// validate rejects conditions on unknown columns and unknown operators.
func (q Query) validate(def schema.Table) error {
	var errs validationErrors
	for _, c := range q.Conditions {
		if def.Index(c.Column) < 0 {
			errs.add(c.Column, "unknown column")
			continue
		}
		switch c.Op {
		case OpEq, OpContains, OpPrefix:
		default:
			errs.add(c.Column, fmt.Sprintf("unknown operator %q", c.Op))
		}
	}
	if q.Offset < 0 {
		errs.add("offset", "must not be negative")
	}
	return errs.err(def.Type)
}

// matcher evaluates a query against records. Comparisons for contains and
// prefix are case-insensitive using Unicode case folding.
type matcher struct {
	conds  []Condition
	folder cases.Caser
}

func newMatcher(q Query) *matcher {
	m := &matcher{conds: append([]Condition(nil), q.Conditions...), folder: cases.Fold()}
	for i, c := range m.conds {
		if c.Op != OpEq {
			m.conds[i].Value = m.folder.String(c.Value)
		}
	}
	return m
}

func (m *matcher) match(r Record) bool {
	for _, c := range m.conds {
		v := r.Fields[c.Column]
		if c.Column == schema.IDColumn {
			v = r.ID
		}
		switch c.Op {
		case OpEq:
			if v != c.Value {
				return false
			}
		case OpContains:
			if !strings.Contains(m.folder.String(v), c.Value) {
				return false
			}
		case OpPrefix:
			if !strings.HasPrefix(m.folder.String(v), c.Value) {
				return false
			}
		}
	}
	return true
}

// apply filters records and applies pagination.
func (q Query) apply(records []Record) []Record {
	m := newMatcher(q)
	out := make([]Record, 0, len(records))
	skipped := 0
	for _, r := range records {
		if !m.match(r) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}
