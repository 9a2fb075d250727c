package schema

import (
	"fmt"
	"strings"
)

// DefaultDateFormat is used when a template does not configure one.
const DefaultDateFormat = "YYYY-MM-DD"

type options struct {
	dateFormat string
}

// Option customises schema generation.
type Option func(*options)

// WithDateFormat sets the date format Date columns are parsed with.
// Blank formats are ignored.
func WithDateFormat(format string) Option {
	return func(o *options) {
		if strings.TrimSpace(format) != "" {
			o.dateFormat = strings.TrimSpace(format)
		}
	}
}

// Generate builds a schema from cols.
//
// Columns without custom validations are required. Columns that carry a
// custom enumeration are exempt from the required set because the
// enumeration governs them instead, and the enumeration becomes the
// property's enum constraint.
func Generate(cols []Column, opts ...Option) (*Schema, error) {
	if err := CheckColumns(cols); err != nil {
		return nil, err
	}

	o := options{dateFormat: DefaultDateFormat}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := Layout(o.dateFormat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpecification, err)
	}

	s := &Schema{
		Type:       "object",
		Properties: make(map[string]Property, len(cols)),
		Required:   []string{},
		Order:      make([]string, 0, len(cols)),
		DateFormat: o.dateFormat,
	}

	for _, col := range cols {
		prop := propertyFor(col.DataType)
		if col.HasCustomValidation() {
			prop.Enum = append([]string(nil), col.CustomValidations...)
		} else {
			s.Required = append(s.Required, col.Label)
		}

		s.Properties[col.Label] = prop
		s.Order = append(s.Order, col.Label)
	}

	return s, nil
}

// CheckColumns reports the first problem with cols: a nil list, an empty or
// padded label, a duplicate label or an unknown data type.
func CheckColumns(cols []Column) error {
	if cols == nil {
		return fmt.Errorf("%w: columns are missing", ErrInvalidSpecification)
	}

	seen := make(map[string]struct{}, len(cols))
	for i, col := range cols {
		label := strings.TrimSpace(col.Label)
		if label == "" {
			return fmt.Errorf("%w: column %d has an empty label", ErrInvalidSpecification, i+1)
		}
		if label != col.Label {
			return fmt.Errorf("%w: column label %q has surrounding whitespace", ErrInvalidSpecification, col.Label)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate column label %q", ErrInvalidSpecification, label)
		}
		seen[label] = struct{}{}
		if !col.DataType.Valid() {
			return fmt.Errorf("%w: column %q has unknown data type %q", ErrInvalidSpecification, label, col.DataType)
		}
	}
	return nil
}

// propertyFor maps a data type to its JSON-Schema type and format.
func propertyFor(dt DataType) Property {
	switch dt {
	case TypeNumber:
		return Property{Type: "number", DataType: dt}
	case TypeDate:
		return Property{Type: "string", Format: "date", DataType: dt}
	case TypeBoolean:
		return Property{Type: "boolean", DataType: dt}
	case TypeEmail:
		return Property{Type: "string", Format: "email", DataType: dt}
	default:
		return Property{Type: "string", DataType: TypeText}
	}
}
