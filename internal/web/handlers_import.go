package web

import (
	"context"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/logging"
	"github.com/JonMunkholm/importcheck/internal/report"
)

// Upload limits
const (
	multipartMemory   = 32 << 20 // Parts above this spill to temp files
	multipartOverhead = 1 << 20  // Allowance for boundaries and form fields
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// uploadedFile opens the "file" part of a multipart request. The body is
// capped at the configured file size plus form overhead.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if limit := s.service.MaxFileSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, core.ErrFileTooLarge
		}
		return nil, nil, badRequest("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, badRequest("no file provided")
	}
	return file, header, nil
}

// rowReader picks the CSV or XLSX reader by extension, then content type.
// The returned close func releases reader resources.
func (s *Server) rowReader(file multipart.File, header *multipart.FileHeader) (core.RowReader, func(), error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	ctype := header.Header.Get("Content-Type")

	switch {
	case ext == ".xlsx" || (ext == "" && strings.HasPrefix(ctype, xlsxContentType)):
		xr, err := report.NewXLSXRowReader(file, s.service.MaxFileSize())
		if err != nil {
			return nil, nil, err
		}
		return xr, func() { _ = xr.Close() }, nil
	case ext == ".csv" || ext == ".txt" || ext == "":
		return core.NewCSVRowReader(file, s.service.MaxFileSize()), func() {}, nil
	default:
		return nil, nil, badRequest("unsupported file type %q, upload .csv or .xlsx", ext)
	}
}

// handleImport streams an uploaded CSV or XLSX file into a template's
// collection. Invalid rows are stored with their validation data.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	rr, closeReader, err := s.rowReader(file, header)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closeReader()

	ctx := r.Context()
	if s.cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Import.Timeout)
		defer cancel()
	}

	logging.WithFields(ctx, "template_id", id, "file", header.Filename).
		Info("import received", "bytes", header.Size)

	res, err := s.service.Import(ctx, id, header.Filename, rr)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePreviewImport analyzes an upload and reports what an import would
// store, without writing anything.
func (s *Server) handlePreviewImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	rr, closeReader, err := s.rowReader(file, header)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closeReader()

	resp, err := s.service.PreviewImport(r.Context(), chi.URLParam(r, "id"), rr)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
