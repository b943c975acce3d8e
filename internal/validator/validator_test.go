package validator

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"

	apperrors "github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/internal/schema"
)

func TestNewSchemaValidator(t *testing.T) {
	validator := NewSchemaValidator()
	if validator == nil {
		t.Fatal("expected non-nil validator")
	}
}

func parse(t *testing.T, data string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(data))
	if err != nil {
		t.Fatalf("schema.Parse() error = %v", err)
	}
	return s
}

func TestSchemaValidator_ValidateSuccess(t *testing.T) {
	validator := NewSchemaValidator()

	tests := []struct {
		name   string
		schema string
	}{
		{
			name: "full schema",
			schema: `{"fields": [
				{"name": "url", "type": ["string"]},
				{"name": "code", "aliases": ["id"], "type": ["null", "string"], "default": null},
				{"name": "date", "aliases": ["lastupdate", "reg_date"], "type": ["null", "string"]},
				{"name": "startDate", "type": ["null", "string"], "transform": "copyFrom(date)", "default": null},
				{"name": "isReady", "type": ["boolean"], "transform": "int2boolean", "default": false}
			]}`,
		},
		{
			name:   "numeric default",
			schema: `{"fields": [{"name": "n", "type": ["long"], "default": 3}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validator.Validate(parse(t, tt.schema)); err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestSchemaValidator_ValidateFailure(t *testing.T) {
	validator := NewSchemaValidator()

	tests := []struct {
		name       string
		schema     string
		wantErrors int
		wantReason string
	}{
		{
			name:       "no fields",
			schema:     `{"fields": []}`,
			wantErrors: 1,
			wantReason: "no fields",
		},
		{
			name:       "bad name",
			schema:     `{"fields": [{"name": "1st", "type": ["string"]}]}`,
			wantErrors: 1,
			wantReason: "must start with",
		},
		{
			name: "duplicate name and alias",
			schema: `{"fields": [
				{"name": "a", "aliases": ["b"], "type": ["string"]},
				{"name": "b", "type": ["string"]}
			]}`,
			wantErrors: 1,
			wantReason: `already used by field "b"`,
		},
		{
			name:       "unknown type",
			schema:     `{"fields": [{"name": "a", "type": ["bytes"]}]}`,
			wantErrors: 1,
			wantReason: `unsupported type "bytes"`,
		},
		{
			name:       "missing type",
			schema:     `{"fields": [{"name": "a"}]}`,
			wantErrors: 1,
			wantReason: "no type declared",
		},
		{
			name:       "unsupported transform",
			schema:     `{"fields": [{"name": "a", "type": ["string"], "transform": "frobnicate(x)"}]}`,
			wantErrors: 1,
			wantReason: "frobnicate(x)",
		},
		{
			name:       "copyFrom unknown field",
			schema:     `{"fields": [{"name": "a", "type": ["string"], "transform": "copyFrom(zzz)"}]}`,
			wantErrors: 1,
			wantReason: `"zzz" is not a declared field`,
		},
		{
			name:       "default does not cast",
			schema:     `{"fields": [{"name": "a", "type": ["int"], "default": "abc"}]}`,
			wantErrors: 1,
			wantReason: "does not match types",
		},
		{
			name: "several problems",
			schema: `{"fields": [
				{"name": "a", "type": ["bytes"], "transform": "nope"},
				{"name": "a", "type": ["string"]}
			]}`,
			wantErrors: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(parse(t, tt.schema))
			if err == nil {
				t.Fatal("Validate() should fail")
			}

			errs := multierr.Errors(err)
			if len(errs) != tt.wantErrors {
				t.Errorf("Validate() returned %d errors, want %d: %v", len(errs), tt.wantErrors, err)
			}
			for _, e := range errs {
				if !errors.Is(e, apperrors.ErrInvalidSchema) {
					t.Errorf("error %v should match ErrInvalidSchema", e)
				}
			}
			if tt.wantReason != "" && !strings.Contains(err.Error(), tt.wantReason) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantReason)
			}
		})
	}
}

func TestSchemaValidator_AllowUnknownTypes(t *testing.T) {
	validator := &SchemaValidator{AllowUnknownTypes: true}

	err := validator.Validate(parse(t, `{"fields": [{"name": "a", "type": ["bytes", "string"]}]}`))
	if err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}
