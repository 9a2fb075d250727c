package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/feedback"
)

// maxRecordPage caps ?limit on record listings.
const maxRecordPage = 10000

const totalCountHeader = "X-Total-Count"

type validateResponse struct {
	Valid  bool                   `json:"valid"`
	Errors []core.ValidationError `json:"errors"`
	Values map[string]any         `json:"values"`
}

// recordFields decodes a JSON object of label to value. Non-string values
// are rendered with their JSON text; null becomes the empty string.
func recordFields(r *http.Request) (map[string]string, error) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = v
		case bool:
			fields[k] = strconv.FormatBool(v)
		case float64:
			fields[k] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, badRequest("field %q must be a string, number or boolean", k)
		}
	}
	return fields, nil
}

// handleValidateRecord validates one record without storing it.
func (s *Server) handleValidateRecord(w http.ResponseWriter, r *http.Request) {
	fields, err := recordFields(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	typed, errs, err := s.service.CoerceFields(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if errs == nil {
		errs = []core.ValidationError{}
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:  len(errs) == 0,
		Errors: errs,
		Values: typed.Values(),
	})
}

// handleValidateCell validates one (column, value) pair. It is the server
// side of the interactive feedback session.
func (s *Server) handleValidateCell(w http.ResponseWriter, r *http.Request) {
	var req feedback.CellRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Column) == "" {
		s.respondError(w, r, badRequest("column is required"))
		return
	}

	verr, err := s.service.ValidateCell(r.Context(), chi.URLParam(r, "id"), req.Column, req.Value)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback.CellResponse{Valid: verr == nil, Error: verr})
}

// parseRecordFilter reads ?status=valid|invalid&limit=&offset=.
func parseRecordFilter(r *http.Request) (core.RecordFilter, error) {
	q := r.URL.Query()
	var f core.RecordFilter

	switch status := strings.ToLower(q.Get("status")); status {
	case "", "all":
	case "valid", "invalid":
		valid := status == "valid"
		f.Valid = &valid
	default:
		return f, badRequest("status must be valid or invalid, got %q", status)
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit"), 0, maxRecordPage); err != nil {
		return f, badRequest("limit: %v", err)
	}
	if f.Offset, err = intParam(q.Get("offset"), 0, -1); err != nil {
		return f, badRequest("offset: %v", err)
	}
	return f, nil
}

// intParam parses a non-negative integer query value. Empty means 0; a
// negative ceiling means unbounded.
func intParam(v string, floor, ceiling int) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < floor {
		return 0, strconv.ErrRange
	}
	if ceiling >= 0 && n > ceiling {
		n = ceiling
	}
	return n, nil
}

// handleListRecords lists a template's records, optionally by status. The
// unpaginated match count is sent in X-Total-Count.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := parseRecordFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	total, err := s.service.CountRecords(r.Context(), id, f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	records, err := s.service.ListRecords(r.Context(), id, f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set(totalCountHeader, strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, records)
}

// handleUpdateRecord edits a record and returns it revalidated.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	fields, err := recordFields(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := s.service.UpdateRecord(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "recordID"), fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord removes a record.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecord(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "recordID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRevalidate recomputes validation data for a whole collection.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Revalidate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
