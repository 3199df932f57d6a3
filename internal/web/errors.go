package web

// errors.go maps errors to user messages with support codes and writes them
// in the format the client asked for.
//
// # Error Codes Reference
//
//	VAL001   - One or more fields are invalid (422). The response lists them.
//	NF001    - Record not found (404)
//	TBL002   - Unknown table (404)
//	REF001   - Record is referenced by other records (409)
//	AUD001   - Change saved, audit entry queued (warning on a 2xx response)
//	AUD002   - Table is append-only (409)
//	EXT001   - Document could not be read (422)
//	STORE001 - Spreadsheet unavailable after retries (503)
//	REQ001   - Request body could not be decoded (400)
//	REQ002   - Request timed out (504)
//	REQ003   - Request cancelled by the client (408)
//	RATE001  - Too many requests (429)
//	AUTH001  - Missing API key (401), AUTH002 - invalid API key (403);
//	           written by middleware.APIKeyAuth
//	ERR000   - Anything else (500). Check the server log by request_id.
//
// The first matching entry wins, so wrapped errors map to their most specific
// cause. Typed validation errors are checked before sentinels.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetstore/internal/extract"
	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

var (
	errBadRequest  = errors.New("malformed request body")
	errRateLimited = errors.New("rate limit exceeded")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int
	Fields  []store.FieldError
}

type errorKind struct {
	target error
	msg    UserMessage
}

var errorKinds = []errorKind{
	{store.ErrNotFound, UserMessage{
		Message: "Record not found",
		Action:  "Check the identifier and try again",
		Code:    "NF001",
		Status:  http.StatusNotFound,
	}},
	{schema.ErrUnknownEntityType, UserMessage{
		Message: "Unknown table",
		Action:  "GET /api/tables lists the available tables",
		Code:    "TBL002",
		Status:  http.StatusNotFound,
	}},
	{store.ErrInUse, UserMessage{
		Message: "The record is referenced by other records",
		Action:  "Delete or re-point the referencing records first",
		Code:    "REF001",
		Status:  http.StatusConflict,
	}},
	{store.ErrImmutable, UserMessage{
		Message: "This table is append-only",
		Action:  "Entries in this table are written by the system",
		Code:    "AUD002",
		Status:  http.StatusConflict,
	}},
	{extract.ErrExtraction, UserMessage{
		Message: "The document could not be read",
		Action:  "Send a YAML or JSON document of field: value pairs",
		Code:    "EXT001",
		Status:  http.StatusUnprocessableEntity,
	}},
	{store.ErrUnavailable, UserMessage{
		Message: "The spreadsheet is not responding",
		Action:  "Please try again in a few moments",
		Code:    "STORE001",
		Status:  http.StatusServiceUnavailable,
	}},
	{errBadRequest, UserMessage{
		Message: "The request body could not be read",
		Action:  "Send a JSON object whose values are strings",
		Code:    "REQ001",
		Status:  http.StatusBadRequest,
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "REQ002",
		Status:  http.StatusGatewayTimeout,
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ003",
		Status:  http.StatusRequestTimeout,
	}},
	{errRateLimited, UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
		Status:  http.StatusTooManyRequests,
	}},
}

var auditWarning = UserMessage{
	Message: "The change was saved but its audit entry is queued",
	Action:  "No action needed; the entry is written when the spreadsheet recovers",
	Code:    "AUD001",
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts an error into a user message and HTTP status.
// A nil error maps to the zero message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		return UserMessage{
			Message: "Some fields are invalid",
			Action:  "Correct the listed fields and try again",
			Code:    "VAL001",
			Status:  http.StatusUnprocessableEntity,
			Fields:  verr.Fields,
		}
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}
	return defaultMessage
}

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Action  string             `json:"action,omitempty"`
	Code    string             `json:"code"`
	Fields  []store.FieldError `json:"fields,omitempty"`
}

// respondError logs err with the request ID and writes the mapped message.
// Server-side failures log at error level, client mistakes at info.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := MapError(err)

	log := logging.FromContext(r.Context()).Info
	if msg.Status >= http.StatusInternalServerError {
		log = logging.FromContext(r.Context()).Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", msg.Status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if isHTMX(r) {
		renderErrorPartial(w, r, msg)
		return
	}
	w.Header().Set("X-Request-Id", middleware.GetReqID(r.Context()))
	writeJSON(w, r, msg.Status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Fields:  msg.Fields,
	})
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg UserMessage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(msg.Status)
	if err := ErrorAlert(msg).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error partial", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// decodeFields reads a JSON object of string values.
func decodeFields(w http.ResponseWriter, r *http.Request) (store.Fields, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return nil, errBadRequest
	}
	var f store.Fields
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Join(errBadRequest, err)
	}
	if f == nil {
		return nil, errBadRequest
	}
	return f, nil
}

const maxBodySize = 1 << 20
