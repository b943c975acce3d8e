// Package validator checks a schema for mistakes that the transformer would
// otherwise only surface record by record.
package validator

import (
	"fmt"
	"regexp"

	"go.uber.org/multierr"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/internal/transform"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SchemaValidator validates record schemas.
type SchemaValidator struct {
	// AllowUnknownTypes accepts type tags outside the supported primitives.
	// The cast stage skips such tags.
	AllowUnknownTypes bool
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate reports every problem found in s as one combined error of
// *errors.ValidationError values. Use multierr.Errors to split it.
func (v *SchemaValidator) Validate(s *schema.Schema) error {
	if len(s.Fields) == 0 {
		return &errors.ValidationError{Field: "fields", Reason: "schema declares no fields"}
	}

	var errs error
	owners := make(map[string]string)
	claim := func(name, field string) {
		if owner, ok := owners[name]; ok {
			errs = multierr.Append(errs, &errors.ValidationError{
				Field:  field,
				Reason: fmt.Sprintf("name %q already used by field %q", name, owner),
			})
			return
		}
		owners[name] = field
	}

	for _, f := range s.Fields {
		if !namePattern.MatchString(f.Name) {
			errs = multierr.Append(errs, &errors.ValidationError{
				Field:  f.Name,
				Reason: "name must start with a letter or underscore and contain only letters, digits and underscores",
			})
		}
		claim(f.Name, f.Name)
	}
	for _, f := range s.Fields {
		for _, alias := range f.Aliases {
			claim(alias, f.Name)
		}
	}

	for _, f := range s.Fields {
		errs = multierr.Append(errs, v.validateField(f, s))
	}
	return errs
}

func (v *SchemaValidator) validateField(f schema.Field, s *schema.Schema) error {
	var errs error

	if len(f.Type) == 0 {
		errs = multierr.Append(errs, &errors.ValidationError{Field: f.Name, Reason: "no type declared"})
	}
	if !v.AllowUnknownTypes {
		for _, tag := range f.Type {
			if !tag.Known() {
				errs = multierr.Append(errs, &errors.ValidationError{
					Field:  f.Name,
					Reason: fmt.Sprintf("unsupported type %q", tag),
				})
			}
		}
	}

	if f.Transform != "" {
		expr, err := transform.ParseExpr(f.Name, f.Transform)
		switch {
		case err != nil:
			errs = multierr.Append(errs, &errors.ValidationError{Field: f.Name, Reason: err.Error()})
		case expr.Kind == transform.CopyFrom:
			if _, ok := s.Field(expr.Source); !ok {
				errs = multierr.Append(errs, &errors.ValidationError{
					Field:  f.Name,
					Reason: fmt.Sprintf("copyFrom source %q is not a declared field", expr.Source),
				})
			}
		}
	}

	if value, ok := f.Default.Value(); ok && len(f.Type) > 0 {
		if _, err := transform.CastValue(f.Name, value, f.Type); err != nil {
			errs = multierr.Append(errs, &errors.ValidationError{
				Field:  f.Name,
				Reason: fmt.Sprintf("default %v does not match types %s", value, f.Type),
			})
		}
	}

	return errs
}
