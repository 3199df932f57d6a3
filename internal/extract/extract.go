// Package extract turns uploaded documents into record drafts.
//
// The record store only depends on [Extractor]; richer extractors (OCR,
// form parsers) can be plugged in behind it. [StructuredExtractor] handles
// YAML and JSON key/value documents.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// ErrExtraction is returned when a document yields no usable draft.
var ErrExtraction = errors.New("extraction failed")

// MaxDocumentSize bounds the documents StructuredExtractor accepts.
const MaxDocumentSize = 1 << 20

// Document is an uploaded file.
type Document struct {
	Name        string
	ContentType string
	Body        []byte
}

// Draft is a set of field values for one record, not yet validated.
// Type is empty when the document does not say what it describes.
type Draft struct {
	Type   schema.EntityType
	Fields map[string]string
}

// Extractor produces a draft from a document.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (Draft, error)
}

// StructuredExtractor reads YAML or JSON documents in either of two shapes:
//
//	full_name: Ada Lovelace
//	date_of_birth: 1815-12-10
//
// or, naming the entity:
//
//	entity: Person
//	fields:
//	  Full Name: Ada Lovelace
//
// Keys are converted to column names ("Full Name" -> "full_name").
type StructuredExtractor struct{}

func (StructuredExtractor) Extract(ctx context.Context, doc Document) (Draft, error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, err
	}
	if len(bytes.TrimSpace(doc.Body)) == 0 {
		return Draft{}, fmt.Errorf("%w: %s is empty", ErrExtraction, docName(doc))
	}
	if len(doc.Body) > MaxDocumentSize {
		return Draft{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrExtraction, docName(doc), MaxDocumentSize)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(doc.Body, &raw); err != nil {
		return Draft{}, fmt.Errorf("%w: %s: %v", ErrExtraction, docName(doc), err)
	}
	if len(raw) == 0 {
		return Draft{}, fmt.Errorf("%w: %s has no fields", ErrExtraction, docName(doc))
	}

	var draft Draft
	if name, ok := raw["entity"].(string); ok {
		t, err := schema.Resolve(name)
		if err != nil {
			return Draft{}, fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		draft.Type = t
		nested, ok := raw["fields"].(map[string]any)
		if !ok {
			return Draft{}, fmt.Errorf("%w: %s names an entity but has no fields map", ErrExtraction, docName(doc))
		}
		raw = nested
	}

	fields, err := flatten(raw)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %s: %v", ErrExtraction, docName(doc), err)
	}
	draft.Fields = fields
	return draft, nil
}

// flatten converts scalar values to cell text. Nested values are rejected.
func flatten(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		col := ColumnName(k)
		if col == "" {
			continue
		}
		if _, dup := out[col]; dup {
			return nil, fmt.Errorf("keys map to the same column %q", col)
		}
		switch v := raw[k].(type) {
		case nil:
			out[col] = ""
		case string:
			out[col] = strings.TrimSpace(v)
		case bool, int, int64, uint64, float64:
			out[col] = fmt.Sprint(v)
		case time.Time:
			// YAML decodes unquoted dates as timestamps.
			if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
				out[col] = v.Format("2006-01-02")
			} else {
				out[col] = v.UTC().Format(time.RFC3339Nano)
			}
		default:
			return nil, fmt.Errorf("field %q is not a single value", k)
		}
	}
	return out, nil
}

// ColumnName converts a label to a column name: lower case, words joined
// with underscores, punctuation dropped.
func ColumnName(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSep = true
		}
	}
	return b.String()
}

func docName(doc Document) string {
	if doc.Name == "" {
		return "document"
	}
	return doc.Name
}
