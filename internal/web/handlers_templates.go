package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/schema"
)

// columnList decodes the "columns" field through schema.ParseColumns. A nil
// list means the field was absent.
type columnList []schema.Column

func (c *columnList) UnmarshalJSON(raw []byte) error {
	cols, err := schema.ParseColumns(raw)
	if err != nil {
		return err
	}
	*c = cols
	return nil
}

func (c columnList) columns() ([]schema.Column, error) {
	if c == nil {
		return schema.ParseColumns(nil)
	}
	return c, nil
}

type generateSchemaRequest struct {
	Columns    columnList `json:"columns"`
	DateFormat string     `json:"date_format"`
}

type templateRequest struct {
	Name           string            `json:"template_name"`
	Columns        columnList        `json:"columns"`
	Validators     schema.Validators `json:"validators"`
	BaseTemplateID string            `json:"baseTemplateId"`
	DateFormat     string            `json:"date_format"`
}

func (t templateRequest) params() (core.TemplateParams, error) {
	cols, err := t.Columns.columns()
	if err != nil {
		return core.TemplateParams{}, err
	}
	return core.TemplateParams{
		Name:           t.Name,
		Columns:        cols,
		Validators:     t.Validators,
		BaseTemplateID: t.BaseTemplateID,
		DateFormat:     t.DateFormat,
	}, nil
}

type updateTemplateResponse struct {
	Template     core.Template         `json:"template"`
	Revalidation core.RevalidateResult `json:"revalidation"`
}

// handleGenerateSchema returns the schema for a column list without
// storing anything.
func (s *Server) handleGenerateSchema(w http.ResponseWriter, r *http.Request) {
	var req generateSchemaRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	cols, err := req.Columns.columns()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sc, err := s.service.GenerateSchema(cols, req.DateFormat)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// handleListTemplates returns all templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListTemplates(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// handleCreateTemplate creates a template, derived when baseTemplateId is set.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := req.params()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	t, err := s.service.CreateTemplate(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleGetTemplate returns a single template by ID.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTemplate replaces a template's columns and reports the
// revalidation of its collection.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := req.params()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	t, res, err := s.service.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateTemplateResponse{Template: t, Revalidation: res})
}

// handleDeleteTemplate removes a template. Its records are kept.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateImportConfig links a template to its importer and organization.
func (s *Server) handleCreateImportConfig(w http.ResponseWriter, r *http.Request) {
	var req core.ImportConfig
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.service.CreateImportConfig(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
