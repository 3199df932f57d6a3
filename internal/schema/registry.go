package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
)

var (
	registry   = make(map[EntityType]Table)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if the type is already registered or the definition is unusable.
func Register(t Table) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Type]; exists {
		panic(fmt.Sprintf("table already registered: %s", t.Type))
	}
	if t.Prefix == "" {
		panic(fmt.Sprintf("table %s has no id prefix", t.Type))
	}
	if t.Name == "" {
		t.Name = TableNameFor(t.Type)
	}
	if t.Delete == DeleteSoft {
		if _, ok := t.Column(StatusColumn); !ok {
			panic(fmt.Sprintf("table %s uses soft delete but has no %s column", t.Type, StatusColumn))
		}
	}

	registry[t.Type] = t
}

// TableNameFor derives a tab name from an entity type:
// "RiskAssessment" becomes "risk_assessments", "Person" becomes "people".
func TableNameFor(t EntityType) string {
	var words []string
	var cur strings.Builder
	for i, r := range string(t) {
		if i > 0 && r >= 'A' && r <= 'Z' {
			words = append(words, strings.ToLower(cur.String()))
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		words = append(words, strings.ToLower(cur.String()))
	}
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = inflection.Plural(words[len(words)-1])
	return strings.Join(words, "_")
}

// Lookup returns the table registered for t.
func Lookup(t EntityType) (Table, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[t]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, string(t))
	}
	return def, nil
}

// Columns returns the ordered columns of t, id first.
func Columns(t EntityType) ([]Column, error) {
	def, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(def.Columns)+1)
	cols = append(cols, Column{Name: IDColumn, Type: FieldText, Required: true})
	return append(cols, def.Columns...), nil
}

// TableName returns the sheet tab name for t.
func TableName(t EntityType) (string, error) {
	def, err := Lookup(t)
	if err != nil {
		return "", err
	}
	return def.Name, nil
}

// Header returns the header row provisioned for t.
func Header(t EntityType) ([]string, error) {
	def, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	return def.Header(), nil
}

// Resolve maps a user-supplied name to an entity type. It accepts the entity
// name ("Person"), the tab name ("people") or the id prefix ("PER"), ignoring case.
func Resolve(name string) (EntityType, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, def := range registry {
		if strings.EqualFold(string(def.Type), name) ||
			strings.EqualFold(def.Name, name) ||
			strings.EqualFold(def.Prefix, name) {
			return def.Type, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, name)
}

// All returns every registered table sorted by tab name.
func All() []Table {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Table, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Dependents returns every column in every table that references t.
// Sorted for deterministic scanning order.
func Dependents(t EntityType) []Reference {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var refs []Reference
	for _, def := range registry {
		for _, c := range def.Columns {
			if c.References == t {
				refs = append(refs, Reference{From: def.Type, Column: c.Name})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].From != refs[j].From {
			return refs[i].From < refs[j].From
		}
		return refs[i].Column < refs[j].Column
	})
	return refs
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
