package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/importcheck/internal/logging"
	"github.com/JonMunkholm/importcheck/internal/schema"
)

// TemplateParams describes a template to create or the new column set of a
// template being replaced.
type TemplateParams struct {
	Name           string
	Columns        []schema.Column
	Validators     schema.Validators
	BaseTemplateID string
	DateFormat     string
}

// GenerateSchema builds a schema from columns without storing anything.
func (s *Service) GenerateSchema(cols []schema.Column, dateFormat string) (*schema.Schema, error) {
	return schema.Generate(cols, schema.WithDateFormat(s.dateFormat(dateFormat)))
}

func (s *Service) dateFormat(f string) string {
	if strings.TrimSpace(f) == "" {
		return s.opts.DefaultDateFormat
	}
	return strings.TrimSpace(f)
}

// buildSchema produces the schema and validators for p. Derived templates
// copy their base's schema; others generate one from the columns.
func (s *Service) buildSchema(ctx context.Context, p TemplateParams) (*schema.Schema, schema.Validators, string, error) {
	if err := schema.CheckColumns(p.Columns); err != nil {
		return nil, nil, "", err
	}

	if p.BaseTemplateID == "" {
		df := s.dateFormat(p.DateFormat)
		sc, err := schema.Generate(p.Columns, schema.WithDateFormat(df))
		if err != nil {
			return nil, nil, "", err
		}
		return sc, p.Validators.Clone(), df, nil
	}

	base, err := s.store.GetTemplate(ctx, p.BaseTemplateID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, "", fmt.Errorf("%w: base template %q does not exist", ErrInvalidSpecification, p.BaseTemplateID)
	}
	if err != nil {
		return nil, nil, "", fmt.Errorf("load base template: %w", err)
	}

	sc, validators := schema.Derive(base.Schema, base.Validators, schema.Labels(p.Columns))
	return sc, validators, base.DateFormat, nil
}

// CreateTemplate stores a new template and creates its record collection.
func (s *Service) CreateTemplate(ctx context.Context, p TemplateParams) (Template, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Template{}, invalid("template_name is required")
	}

	sc, validators, df, err := s.buildSchema(ctx, p)
	if err != nil {
		return Template{}, err
	}

	now := s.now()
	id := s.newID()
	t := Template{
		ID:             id,
		Name:           name,
		Columns:        p.Columns,
		Schema:         sc,
		Validators:     validators,
		CollectionName: collectionName(name, id),
		BaseTemplateID: p.BaseTemplateID,
		DateFormat:     df,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.EnsureCollection(ctx, t.CollectionName); err != nil {
		return Template{}, fmt.Errorf("create collection: %w", err)
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return Template{}, fmt.Errorf("create template: %w", err)
	}

	logging.WithFields(ctx, "template_id", t.ID, "collection", t.CollectionName).
		Info("template created", "columns", len(t.Columns), "derived", t.IsDerived())
	s.recordActivity(ctx, t.CollectionName, ActionCreateTemplate, "")
	return t, nil
}

// GetTemplate returns the template with id.
func (s *Service) GetTemplate(ctx context.Context, id string) (Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns all templates, oldest first.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.store.ListTemplates(ctx)
}

// UpdateTemplate replaces the column set of template id, rebuilds its
// schema and revalidates its collection against the new schema. The name is
// kept when p.Name is blank. A derived template stays derived from the same
// base; p.BaseTemplateID is ignored.
func (s *Service) UpdateTemplate(ctx context.Context, id string, p TemplateParams) (Template, RevalidateResult, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, RevalidateResult{}, err
	}

	p.BaseTemplateID = t.BaseTemplateID
	if p.DateFormat == "" {
		p.DateFormat = t.DateFormat
	}
	if p.Validators == nil {
		p.Validators = t.Validators
	}

	sc, validators, df, err := s.buildSchema(ctx, p)
	if err != nil {
		return Template{}, RevalidateResult{}, err
	}

	if name := strings.TrimSpace(p.Name); name != "" {
		t.Name = name
	}
	t.Columns = p.Columns
	t.Schema = sc
	t.Validators = validators
	t.DateFormat = df
	t.UpdatedAt = s.now()

	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return Template{}, RevalidateResult{}, fmt.Errorf("update template: %w", err)
	}
	s.recordActivity(ctx, t.CollectionName, ActionUpdateTemplate, "")

	res, err := s.revalidate(ctx, t)
	if err != nil {
		return t, res, fmt.Errorf("revalidate after update: %w", err)
	}
	return t, res, nil
}

// DeleteTemplate removes template id. Its records are kept.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	logging.WithFields(ctx, "template_id", id).Info("template deleted")
	s.recordActivity(ctx, t.CollectionName, ActionDeleteTemplate, "")
	return nil
}

// CreateImportConfig links a template to its importer and organization.
func (s *Service) CreateImportConfig(ctx context.Context, c ImportConfig) (ImportConfig, error) {
	if c.TemplateID == "" {
		return ImportConfig{}, invalid("templateId is required")
	}
	t, err := s.store.GetTemplate(ctx, c.TemplateID)
	if err != nil {
		return ImportConfig{}, err
	}

	c.ID = s.newID()
	c.CreatedAt = s.now()
	if err := s.store.CreateImportConfig(ctx, c); err != nil {
		return ImportConfig{}, fmt.Errorf("create import config: %w", err)
	}
	s.recordActivity(ctx, t.CollectionName, ActionCreateImportCfg, "")
	return c, nil
}
