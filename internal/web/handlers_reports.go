package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/logging"
	"github.com/JonMunkholm/importcheck/internal/report"
	"github.com/JonMunkholm/importcheck/internal/web/middleware"
)

// maxActivityPage caps ?limit on activity listings.
const maxActivityPage = 1000

// handleErrorReport downloads the invalid records of a template as XLSX.
func (s *Server) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.service.GetTemplate(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	recs, err := s.service.InvalidRecords(ctx, t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Buffered so a failed render still gets a JSON error.
	var buf bytes.Buffer
	if err := report.WriteErrorReport(&buf, t.Schema.Labels(), recs); err != nil {
		s.respondError(w, r, fmt.Errorf("render error report: %w", err))
		return
	}

	filename := fmt.Sprintf("%s_errors_%s.xlsx", t.CollectionName, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(ctx).Error("write error report", "error", err)
	}
}

// handleAggregate returns the validation snapshot of a collection.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.ComputeAggregate(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// templateIDs collects ?templateId= values, repeated or comma-separated.
func templateIDs(r *http.Request) []string {
	var ids []string
	for _, v := range r.URL.Query()["templateId"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// handleImportStatuses reports completeness for the listed templates, or
// for every template when none are listed.
func (s *Server) handleImportStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.service.ImportStatuses(r.Context(), templateIDs(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// parseActivityFilter reads ?userId=&collection=&action=&since=&limit=.
func parseActivityFilter(r *http.Request) (core.ActivityFilter, error) {
	q := r.URL.Query()
	f := core.ActivityFilter{
		UserID:         q.Get("userId"),
		CollectionName: q.Get("collection"),
		Action:         q.Get("action"),
	}

	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, badRequest("since must be an RFC 3339 timestamp: %v", err)
		}
		f.Since = ts
	}

	limit, err := intParam(q.Get("limit"), 0, maxActivityPage)
	if err != nil {
		return f, badRequest("limit: %v", err)
	}
	f.Limit = limit
	return f, nil
}

// handleListActivity lists activity entries, newest first.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	f, err := parseActivityFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	entries, err := s.service.ListActivity(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAppendActivity records an activity entry produced by a client.
// A blank userId falls back to the X-User-ID header.
func (s *Server) handleAppendActivity(w http.ResponseWriter, r *http.Request) {
	var e core.ActivityEntry
	if err := decodeJSON(r, &e); err != nil {
		s.respondError(w, r, err)
		return
	}
	if e.UserID == "" {
		e.UserID = strings.TrimSpace(r.Header.Get(middleware.HeaderUserID))
	}

	stored, err := s.service.AppendActivity(r.Context(), e)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}
