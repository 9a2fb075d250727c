package core

// validation.go applies a template schema to a record.
//
// Validation is pure: the same fields and schema always give the same error
// list, in column declaration order. A failing record is data, never an
// error value.

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/importcheck/internal/schema"
)

var (
	emailValidatorOnce sync.Once
	emailValidator     *validator.Validate
)

func validateEmail(v string) bool {
	emailValidatorOnce.Do(func() {
		emailValidator = validator.New()
	})
	return emailValidator.Var(v, "required,email") == nil
}

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindDate
	KindBoolean
	KindEmail
)

// Value is a cell coerced to its column's declared type.
type Value struct {
	Kind   Kind
	Number decimal.Decimal
	Text   string
	Time   time.Time
	Bool   bool
}

// Interface returns v as a JSON-friendly Go value: numbers keep their
// exact decimal text, dates render as YYYY-MM-DD.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return json.Number(v.Number.String())
	case KindDate:
		return v.Time.Format(time.DateOnly)
	case KindBoolean:
		return v.Bool
	case KindText, KindEmail:
		return v.Text
	default:
		return nil
	}
}

// TypedRecord holds the coerced values of one record, keyed by label.
type TypedRecord map[string]Value

// Values converts every value with Interface.
func (r TypedRecord) Values() map[string]any {
	out := make(map[string]any, len(r))
	for label, v := range r {
		out[label] = v.Interface()
	}
	return out
}

type columnRule struct {
	label    string
	prop     schema.Property
	required bool
	enum     map[string]struct{}
}

// RecordValidator validates records against one schema. It is immutable
// after construction and safe for concurrent use.
type RecordValidator struct {
	rules      []columnRule
	byLabel    map[string]int
	dateLayout string
	dateFormat string
}

// NewRecordValidator compiles s. A schema whose date format cannot be
// translated falls back to the default format.
func NewRecordValidator(s *schema.Schema) *RecordValidator {
	v := &RecordValidator{byLabel: map[string]int{}}
	if s == nil {
		return v
	}

	v.dateFormat = s.DateFormat
	layout, err := schema.Layout(s.DateFormat)
	if err != nil {
		v.dateFormat = schema.DefaultDateFormat
		layout, _ = schema.Layout(schema.DefaultDateFormat)
	}
	v.dateLayout = layout

	order := s.Order
	if len(order) == 0 {
		// Schemas persisted without an order still validate, just in
		// lexical order.
		order = sortedKeys(s.Properties)
	}

	for _, label := range order {
		prop, ok := s.Properties[label]
		if !ok {
			continue
		}
		r := columnRule{label: label, prop: prop, required: s.IsRequired(label)}
		if len(prop.Enum) > 0 {
			r.enum = make(map[string]struct{}, len(prop.Enum))
			for _, e := range prop.Enum {
				r.enum[strings.TrimSpace(e)] = struct{}{}
			}
		}
		v.byLabel[label] = len(v.rules)
		v.rules = append(v.rules, r)
	}
	return v
}

// ValidateRecord validates fields against s and returns every failure in
// column declaration order. An empty result means the record is valid.
func ValidateRecord(fields map[string]string, s *schema.Schema) []ValidationError {
	return NewRecordValidator(s).Validate(fields)
}

// ValidateField validates a single (label, value) pair against s, using the
// same rules and messages as ValidateRecord. Labels not in s pass.
func ValidateField(label, value string, s *schema.Schema) *ValidationError {
	return NewRecordValidator(s).ValidateField(label, value)
}

// Coerce validates fields and returns the typed values of every column that
// passed and had a value.
func Coerce(fields map[string]string, s *schema.Schema) (TypedRecord, []ValidationError) {
	return NewRecordValidator(s).Coerce(fields)
}

// HasColumn reports whether label is a column of the compiled schema.
func (v *RecordValidator) HasColumn(label string) bool {
	_, ok := v.byLabel[label]
	return ok
}

// Validate returns every failure in fields, in column order.
func (v *RecordValidator) Validate(fields map[string]string) []ValidationError {
	errs := make([]ValidationError, 0)
	for i := range v.rules {
		if _, verr := v.check(&v.rules[i], fields[v.rules[i].label]); verr != nil {
			errs = append(errs, *verr)
		}
	}
	return errs
}

// ValidateField validates one value for label.
func (v *RecordValidator) ValidateField(label, value string) *ValidationError {
	i, ok := v.byLabel[label]
	if !ok {
		return nil
	}
	_, verr := v.check(&v.rules[i], value)
	return verr
}

// Coerce returns the typed values and failures of fields.
func (v *RecordValidator) Coerce(fields map[string]string) (TypedRecord, []ValidationError) {
	out := make(TypedRecord, len(v.rules))
	errs := make([]ValidationError, 0)
	for i := range v.rules {
		r := &v.rules[i]
		val, verr := v.check(r, fields[r.label])
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}
		if val.Kind != KindNull {
			out[r.label] = val
		}
	}
	return out, errs
}

// check applies one column rule to raw.
//
// Order of checks: required, then enumeration membership (which replaces the
// type rule), then the type rule for non-blank values.
func (v *RecordValidator) check(r *columnRule, raw string) (Value, *ValidationError) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" && r.required {
		e := NewValidationError(r.label, fmt.Sprintf("%s is required", r.label))
		return Value{}, &e
	}

	if r.enum != nil {
		if _, ok := r.enum[trimmed]; !ok {
			e := NewValidationError(r.label, fmt.Sprintf("%s must be one of: %s", r.label, strings.Join(r.prop.Enum, ", ")))
			return Value{}, &e
		}
		if trimmed == "" {
			return Value{}, nil
		}
		return Value{Kind: KindText, Text: trimmed}, nil
	}

	if trimmed == "" {
		return Value{}, nil
	}

	switch r.prop.DataType {
	case schema.TypeNumber:
		d, ok := ParseNumber(trimmed)
		if !ok {
			e := NewValidationError(r.label, fmt.Sprintf("%s must be a number", r.label))
			return Value{}, &e
		}
		return Value{Kind: KindNumber, Number: d}, nil

	case schema.TypeDate:
		t, ok := ParseDate(trimmed, v.dateLayout)
		if !ok {
			e := NewValidationError(r.label, fmt.Sprintf("%s must be a date in format %s", r.label, v.dateFormat))
			return Value{}, &e
		}
		return Value{Kind: KindDate, Time: t}, nil

	case schema.TypeBoolean:
		b, ok := ParseBool(trimmed)
		if !ok {
			e := NewValidationError(r.label, fmt.Sprintf("%s must be true or false", r.label))
			return Value{}, &e
		}
		return Value{Kind: KindBoolean, Bool: b}, nil

	case schema.TypeEmail:
		if !validateEmail(trimmed) {
			e := NewValidationError(r.label, fmt.Sprintf("%s must be a valid email address", r.label))
			return Value{}, &e
		}
		return Value{Kind: KindEmail, Text: trimmed}, nil

	default:
		return Value{Kind: KindText, Text: raw}, nil
	}
}

// EqualErrors reports whether two error lists are identical, order included.
func EqualErrors(a, b []ValidationError) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || a[i].Reason() != b[i].Reason() || (a[i].Value == nil) != (b[i].Value == nil) {
			return false
		}
	}
	return true
}
