package store

import (
	"testing"

	"github.com/JonMunkholm/sheetstore/internal/schema"
)

func TestQueryApply(t *testing.T) {
	records := []Record{
		{ID: "SPO-0001", Fields: Fields{"legal_name": "Straße Holdings", "jurisdiction": "DE"}},
		{ID: "SPO-0002", Fields: Fields{"legal_name": "Acme Capital", "jurisdiction": "US"}},
		{ID: "SPO-0003", Fields: Fields{"legal_name": "acme ventures", "jurisdiction": "US"}},
		{ID: "SPO-0004", Fields: Fields{"legal_name": "Northwind"}},
	}

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"no conditions", Query{}, []string{"SPO-0001", "SPO-0002", "SPO-0003", "SPO-0004"}},
		{"eq is exact", Query{}.Where("jurisdiction", "US"), []string{"SPO-0002", "SPO-0003"}},
		{"eq on unset", Query{}.Where("jurisdiction", ""), []string{"SPO-0004"}},
		{"contains folds case", Query{Conditions: []Condition{{"legal_name", OpContains, "ACME"}}}, []string{"SPO-0002", "SPO-0003"}},
		{"contains folds sharp s", Query{Conditions: []Condition{{"legal_name", OpContains, "STRASSE"}}}, []string{"SPO-0001"}},
		{"prefix", Query{Conditions: []Condition{{"legal_name", OpPrefix, "north"}}}, []string{"SPO-0004"}},
		{"id", Query{}.Where("id", "SPO-0003"), []string{"SPO-0003"}},
		{"offset", Query{Offset: 3}, []string{"SPO-0004"}},
		{"limit", Query{Limit: 1}, []string{"SPO-0001"}},
		{"offset past end", Query{Offset: 10}, []string{}},
		{"paginates matches only", Query{Conditions: []Condition{{"legal_name", OpContains, "acme"}}, Offset: 1, Limit: 5}, []string{"SPO-0003"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.apply(records)
			ids := make([]string, len(got))
			for i, r := range got {
				ids[i] = r.ID
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("apply() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("apply()[%d] = %s, want %s", i, ids[i], tt.want[i])
				}
			}
		})
	}
}

func TestQueryApply_DoesNotMutateConditions(t *testing.T) {
	q := Query{Conditions: []Condition{{"legal_name", OpContains, "ACME"}}}
	q.apply(nil)
	if q.Conditions[0].Value != "ACME" {
		t.Errorf("condition value = %q, want ACME", q.Conditions[0].Value)
	}
}

func TestQueryValidate(t *testing.T) {
	def, err := schema.Lookup(schema.Sponsor)
	if err != nil {
		t.Fatal(err)
	}
	if err := (Query{}.Where("legal_name", "x")).validate(def); err != nil {
		t.Errorf("validate known column = %v, want nil", err)
	}
	if err := (Query{Conditions: []Condition{{"legal_name", Op("regex"), "x"}}}).validate(def); err == nil {
		t.Error("validate unknown op = nil, want error")
	}
	if err := (Query{Offset: -1}).validate(def); err == nil {
		t.Error("validate negative offset = nil, want error")
	}
}
