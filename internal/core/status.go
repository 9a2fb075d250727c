package core

// status.go resolves import completeness per template.
//
// Templates are resolved independently and concurrently. A template whose
// aggregate cannot be computed gets a Failed entry carrying the error; it
// never aborts the batch or disappears from the result.

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/importcheck/internal/logging"
)

// ResolveImportStatuses returns one status per template, in input order.
func (s *Service) ResolveImportStatuses(ctx context.Context, templates []Template) []ImportStatus {
	out := make([]ImportStatus, len(templates))

	var g errgroup.Group
	g.SetLimit(s.opts.StatusConcurrency)
	for i, t := range templates {
		g.Go(func() error {
			out[i] = s.resolveStatus(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// ImportStatuses resolves the templates named by ids, or every template
// when ids is empty. Unknown ids yield Failed entries.
func (s *Service) ImportStatuses(ctx context.Context, ids []string) ([]ImportStatus, error) {
	if len(ids) == 0 {
		templates, err := s.store.ListTemplates(ctx)
		if err != nil {
			return nil, err
		}
		return s.ResolveImportStatuses(ctx, templates), nil
	}

	templates := make([]Template, len(ids))
	lookupErrs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(s.opts.StatusConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			templates[i], lookupErrs[i] = s.store.GetTemplate(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	resolvable := make([]Template, 0, len(ids))
	for i := range ids {
		if lookupErrs[i] == nil {
			resolvable = append(resolvable, templates[i])
		}
	}
	resolved := s.ResolveImportStatuses(ctx, resolvable)

	out := make([]ImportStatus, len(ids))
	next := 0
	for i, id := range ids {
		if lookupErrs[i] != nil {
			out[i] = ImportStatus{TemplateID: id, Status: StatusFailed, Error: lookupErrs[i].Error()}
			continue
		}
		out[i] = resolved[next]
		next++
	}
	return out, nil
}

func (s *Service) resolveStatus(ctx context.Context, t Template) ImportStatus {
	st := ImportStatus{TemplateID: t.ID}

	snap, err := s.ComputeAggregate(ctx, t.CollectionName)
	if err != nil {
		logging.WithFields(ctx, "template_id", t.ID).Warn("import status failed", "error", err)
		st.Status = StatusFailed
		st.Error = err.Error()
		return st
	}

	st.Rows = snap.ValidRecords
	st.TotalRecords = snap.TotalRecords
	if snap.TotalRecords == snap.ValidRecords {
		st.Status = StatusComplete
	} else {
		st.Status = StatusIncomplete
	}

	if t.BaseTemplateID != "" {
		cfg, err := s.store.FindImportConfig(ctx, t.BaseTemplateID)
		switch {
		case err == nil:
			st.ImporterID = cfg.ImporterID
			st.OrgID = cfg.OrgID
		case errors.Is(err, ErrNotFound):
		default:
			logging.WithFields(ctx, "template_id", t.ID).Warn("import config lookup failed", "error", err)
		}
	}
	return st
}
