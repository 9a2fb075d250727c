package core

import (
	"time"

	"github.com/JonMunkholm/importcheck/internal/schema"
)

// Template binds a column specification to the collection its records live in.
type Template struct {
	ID             string            `json:"id"`
	Name           string            `json:"template_name"`
	Columns        []schema.Column   `json:"columns"`
	Schema         *schema.Schema    `json:"schema"`
	Validators     schema.Validators `json:"validators,omitempty"`
	CollectionName string            `json:"collection_name"`
	BaseTemplateID string            `json:"baseTemplateId,omitempty"`
	DateFormat     string            `json:"date_format"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsDerived reports whether the template was created from a base template.
func (t Template) IsDerived() bool {
	return t.BaseTemplateID != ""
}

// ValidationError is one reason a record failed validation. Key is the
// column label, or whatever key an external validator produced.
type ValidationError struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// NewValidationError builds a ValidationError with a non-null reason.
func NewValidationError(key, reason string) ValidationError {
	return ValidationError{Key: key, Value: &reason}
}

// Reason returns the reason text, or "" when the value is null.
func (e ValidationError) Reason() string {
	if e.Value == nil {
		return ""
	}
	return *e.Value
}

// Record is one imported row.
type Record struct {
	ID             string            `json:"id"`
	Fields         map[string]string `json:"fields"`
	ValidationData []ValidationError `json:"validationData"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Valid reports whether the record has no validation errors.
func (r Record) Valid() bool {
	return len(r.ValidationData) == 0
}

// AggregateSnapshot summarises the validation state of one collection.
// ValidRecords + ErrorRecords == TotalRecords always holds.
type AggregateSnapshot struct {
	TotalRecords       int64            `json:"totalRecords"`
	ValidRecords       int64            `json:"validRecords"`
	ErrorRecords       int64            `json:"errorRecords"`
	ErrorCountByColumn map[string]int64 `json:"errorCountByColumn"`
}

// emptySnapshot returns the zero snapshot with a non-nil map.
func emptySnapshot() AggregateSnapshot {
	return AggregateSnapshot{ErrorCountByColumn: map[string]int64{}}
}

// merge folds o into s.
func (s *AggregateSnapshot) merge(o AggregateSnapshot) {
	s.TotalRecords += o.TotalRecords
	s.ValidRecords += o.ValidRecords
	s.ErrorRecords += o.ErrorRecords
	for k, n := range o.ErrorCountByColumn {
		s.ErrorCountByColumn[k] += n
	}
}

// Import status values.
const (
	StatusComplete   = "Complete"
	StatusIncomplete = "Incomplete"
	StatusFailed     = "Failed"
)

// ImportStatus is the completeness report for one template.
type ImportStatus struct {
	TemplateID   string `json:"templateId"`
	Status       string `json:"status"`
	Rows         int64  `json:"rows"`
	TotalRecords int64  `json:"totalRecords"`
	ImporterID   string `json:"importerId,omitempty"`
	OrgID        string `json:"orgId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ImportConfig links a template to the importer and organization that own it.
type ImportConfig struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	ImporterID string    `json:"importerId"`
	OrgID      string    `json:"orgId"`
	CreatedAt  time.Time `json:"created_at"`
}

// Unassigned is stored for activity workspace and organization when the
// caller supplies none.
const Unassigned = "unassigned"

// Activity actions.
const (
	ActionImport          = "import"
	ActionEditRecord      = "edit_record"
	ActionDeleteRecord    = "delete_record"
	ActionCreateTemplate  = "create_template"
	ActionUpdateTemplate  = "update_template"
	ActionDeleteTemplate  = "delete_template"
	ActionRevalidate      = "revalidate"
	ActionCreateImportCfg = "create_import_config"
)

// ActivityEntry is one append-only user activity record.
type ActivityEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CollectionName string    `json:"collection_name"`
	Workspace      string    `json:"workspace"`
	Organization   string    `json:"organization"`
	Action         string    `json:"action"`
	RowID          string    `json:"row_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ActivityFilter narrows an activity listing. Zero fields match everything.
type ActivityFilter struct {
	UserID         string
	CollectionName string
	Action         string
	Since          time.Time
	Limit          int
}

// RecordFilter narrows a record listing.
type RecordFilter struct {
	// Valid selects valid (true) or invalid (false) records; nil selects all.
	Valid  *bool
	Limit  int
	Offset int
}

// Matches reports whether r passes the filter's validity condition.
func (f RecordFilter) Matches(r Record) bool {
	return f.Valid == nil || *f.Valid == r.Valid()
}

// ImportResult summarises one file import.
type ImportResult struct {
	ImportID       string        `json:"importId"`
	TemplateID     string        `json:"templateId"`
	FileName       string        `json:"fileName"`
	TotalRows      int           `json:"totalRows"`
	Inserted       int           `json:"inserted"`
	ValidRows      int           `json:"validRows"`
	InvalidRows    int           `json:"invalidRows"`
	SkippedRows    int           `json:"skippedRows"`
	IgnoredHeaders []string      `json:"ignoredHeaders,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// RevalidateResult summarises a collection revalidation.
type RevalidateResult struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
}
