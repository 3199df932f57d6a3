package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetstore/internal/extract"
	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

// TableInfo describes one registered table for GET /api/tables.
type TableInfo struct {
	Entity   schema.EntityType `json:"entity"`
	Name     string            `json:"name"`
	Prefix   string            `json:"prefix"`
	Delete   string            `json:"delete"`
	ReadOnly bool              `json:"read_only,omitempty"`
	Columns  []ColumnInfo      `json:"columns"`
}

// ColumnInfo describes one column.
type ColumnInfo struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Required   bool     `json:"required,omitempty"`
	EnumValues []string `json:"enum_values,omitempty"`
	References string   `json:"references,omitempty"`
}

// TablesResponse is the body of GET /api/tables.
type TablesResponse struct {
	Mode   string      `json:"mode"`
	Tables []TableInfo `json:"tables"`
}

// MutationResponse is the body of a successful write.
type MutationResponse struct {
	Action       string       `json:"action"`
	Record       store.Record `json:"record"`
	AuditID      string       `json:"audit_id"`
	AuditWarning *AuditNotice `json:"audit_warning,omitempty"`
}

// AuditNotice explains a queued audit entry.
type AuditNotice struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ListResponse is the body of GET /api/{entity}.
type ListResponse struct {
	Entity  schema.EntityType `json:"entity"`
	Count   int               `json:"count"`
	Records []store.Record    `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"mode":          s.mode,
		"audit_pending": s.store.Audit().Pending(),
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	all := schema.All()
	resp := TablesResponse{Mode: s.mode, Tables: make([]TableInfo, 0, len(all))}
	for _, def := range all {
		info := TableInfo{
			Entity:   def.Type,
			Name:     def.Name,
			Prefix:   def.Prefix,
			Delete:   def.Delete.String(),
			ReadOnly: def.ReadOnly,
			Columns:  make([]ColumnInfo, len(def.Columns)),
		}
		for i, c := range def.Columns {
			info.Columns[i] = ColumnInfo{
				Name:       c.Name,
				Type:       c.Type.String(),
				Required:   c.Required,
				EnumValues: c.EnumValues,
				References: string(c.References),
			}
		}
		resp.Tables = append(resp.Tables, info)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	records, err := s.store.List(r.Context(), t, q)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		def, _ := schema.Lookup(t)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := RecordTable(def, records).Render(r.Context(), w); err != nil {
			respondError(w, r, err)
		}
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, r, http.StatusOK, ListResponse{Entity: t, Count: len(records), Records: records})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")

	rec, ok, err := s.store.Get(r.Context(), t, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %s %s", store.ErrNotFound, t, id))
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	fields, err := decodeFields(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	m, err := s.store.Create(ctx, t, fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/"+string(t)+"/"+m.Record.ID)
	respondMutation(w, r, http.StatusCreated, m)
}

// handleExtract reads the request body as a document, extracts a draft and
// creates a record from it. A document that names a different entity is
// rejected.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, extract.MaxDocumentSize))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", extract.ErrExtraction, err))
		return
	}
	draft, err := s.extractor.Extract(r.Context(), extract.Document{
		Name:        r.URL.Query().Get("name"),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if draft.Type != "" && draft.Type != t {
		respondError(w, r, fmt.Errorf("%w: document describes %s, not %s", extract.ErrExtraction, draft.Type, t))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	m, err := s.store.Create(ctx, t, store.Fields(draft.Fields))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/"+string(t)+"/"+m.Record.ID)
	respondMutation(w, r, http.StatusCreated, m)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	fields, err := decodeFields(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	m, err := s.store.Update(ctx, t, chi.URLParam(r, "id"), fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondMutation(w, r, http.StatusOK, m)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	m, err := s.store.Delete(ctx, t, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondMutation(w, r, http.StatusOK, m)
}

// respondMutation writes m, attaching a warning when its audit entry was
// only queued.
func respondMutation(w http.ResponseWriter, r *http.Request, status int, m store.Mutation) {
	resp := MutationResponse{Action: m.Action, Record: m.Record, AuditID: m.AuditID}
	if !m.AuditOK() {
		resp.AuditWarning = &AuditNotice{Message: auditWarning.Message, Code: auditWarning.Code}
		w.Header().Set("Warning", `199 sheetstore "`+auditWarning.Code+`"`)
	}
	writeJSON(w, r, status, resp)
}

func entityParam(r *http.Request) (schema.EntityType, error) {
	return schema.Resolve(chi.URLParam(r, "entity"))
}

// parseQuery builds a store query from URL parameters:
//
//	col=v            equality
//	contains.col=v   case-insensitive substring
//	prefix.col=v     case-insensitive prefix
//	offset, limit    pagination
func parseQuery(r *http.Request) (store.Query, error) {
	var q store.Query
	values := r.URL.Query()

	for key, vals := range values {
		switch key {
		case "offset", "limit":
			continue
		}
		op, col := store.OpEq, key
		if prefix, rest, ok := strings.Cut(key, "."); ok {
			switch store.Op(prefix) {
			case store.OpContains, store.OpPrefix, store.OpEq:
				op, col = store.Op(prefix), rest
			}
		}
		for _, v := range vals {
			q.Conditions = append(q.Conditions, store.Condition{Column: col, Op: op, Value: v})
		}
	}

	var err error
	if q.Offset, err = intParam(values.Get("offset")); err != nil {
		return q, fmt.Errorf("%w: offset: %v", errBadRequest, err)
	}
	if q.Limit, err = intParam(values.Get("limit")); err != nil {
		return q, fmt.Errorf("%w: limit: %v", errBadRequest, err)
	}
	return q, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
