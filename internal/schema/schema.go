// Package schema turns a template's column definitions into an executable
// schema: a JSON-Schema-like object carrying the required label set and one
// type constraint per column.
//
// Schemas are values. Generate builds a fresh schema from columns and Derive
// builds a narrowed copy of a base template's schema; neither ever modifies a
// schema it was given.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpecification is returned when a column specification cannot be
// turned into a schema (missing column list, blank or duplicate labels,
// unknown data types).
var ErrInvalidSpecification = errors.New("invalid specification")

// DataType is the declared type of a template column.
type DataType string

const (
	TypeNumber  DataType = "Number"
	TypeText    DataType = "Text"
	TypeDate    DataType = "Date"
	TypeBoolean DataType = "Boolean"
	TypeEmail   DataType = "Email"
)

// DataTypes lists the supported data types in display order.
var DataTypes = []DataType{TypeNumber, TypeText, TypeDate, TypeBoolean, TypeEmail}

// Valid reports whether t is one of the supported data types.
func (t DataType) Valid() bool {
	for _, dt := range DataTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// Column is one column definition of a template.
type Column struct {
	Label             string   `json:"label"`
	DataType          DataType `json:"data_type"`
	CustomValidations []string `json:"custom_validations,omitempty"`
}

// HasCustomValidation reports whether the column carries a non-empty
// enumeration. An empty list means no custom constraint.
func (c Column) HasCustomValidation() bool {
	return len(c.CustomValidations) > 0
}

// Property is the per-column constraint stored in a schema.
type Property struct {
	Type     string   `json:"type"`
	Format   string   `json:"format,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	DataType DataType `json:"x-data-type"`
}

// Schema is the executable form of a column specification.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
	Order      []string            `json:"x-order"`
	DateFormat string              `json:"x-date-format,omitempty"`
}

// Validators is the opaque rule set a template may carry and hand down to
// templates derived from it.
type Validators map[string]any

// Clone returns a deep copy of v. Nested values are copied through a JSON
// round trip, so anything that survived persistence survives cloning.
func (v Validators) Clone() Validators {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		out := make(Validators, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	}
	var out Validators
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// IsRequired reports whether label is in the required set.
func (s *Schema) IsRequired(label string) bool {
	for _, r := range s.Required {
		if r == label {
			return true
		}
	}
	return false
}

// Property returns the constraint for label.
func (s *Schema) Property(label string) (Property, bool) {
	p, ok := s.Properties[label]
	return p, ok
}

// Labels returns the column labels in declaration order.
func (s *Schema) Labels() []string {
	return append([]string(nil), s.Order...)
}

// Clone returns a deep copy of s.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{
		Type:       s.Type,
		Properties: make(map[string]Property, len(s.Properties)),
		Required:   append([]string{}, s.Required...),
		Order:      append([]string{}, s.Order...),
		DateFormat: s.DateFormat,
	}
	for label, p := range s.Properties {
		p.Enum = append([]string(nil), p.Enum...)
		out.Properties[label] = p
	}
	return out
}

// ParseColumns decodes a JSON column list. Input that is missing or not an
// array is an invalid specification.
func ParseColumns(raw []byte) ([]Column, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("%w: columns are missing", ErrInvalidSpecification)
	}
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: columns must be an array", ErrInvalidSpecification)
	}

	var cols []Column
	if err := json.Unmarshal([]byte(trimmed), &cols); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpecification, err)
	}
	return cols, nil
}

// Labels returns the labels of cols in order.
func Labels(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Label
	}
	return out
}
