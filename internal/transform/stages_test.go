package transform

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

func TestBuildIndex(t *testing.T) {
	idx := mustIndex(t, pagesSchema)

	wantNames := map[string]string{
		"url":        "url",
		"code":       "code",
		"id":         "code",
		"date":       "date",
		"lastupdate": "date",
		"reg_date":   "date",
		"startDate":  "startDate",
		"isReady":    "isReady",
	}
	if got := idx.Names(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("Names() = %v, want %v", got, wantNames)
	}

	if got := idx.Fields(); !reflect.DeepEqual(got, []string{"url", "code", "date", "startDate", "isReady"}) {
		t.Errorf("Fields() = %v", got)
	}

	if d, _ := idx.Default("date"); d.Present() {
		t.Error("date should have no default")
	}
	if d, _ := idx.Default("code"); !d.Present() {
		t.Error("code should have a null default")
	}

	if _, ok := idx.Transform("url"); ok {
		t.Error("url should have no transform")
	}
	if e, ok := idx.Transform("startDate"); !ok || e.Kind != CopyFrom || e.Source != "date" {
		t.Errorf("Transform(startDate) = %+v, %v", e, ok)
	}

	types, _ := idx.Types("code")
	if !reflect.DeepEqual(types, schema.TypeList{schema.TypeNull, schema.TypeString}) {
		t.Errorf("Types(code) = %v", types)
	}
	types[0] = schema.TypeInt
	if again, _ := idx.Types("code"); again[0] != schema.TypeNull {
		t.Error("Types() should return a copy")
	}
}

func TestBuildIndex_FirstDeclarationWins(t *testing.T) {
	idx := mustIndex(t, `{"fields": [
		{"name": "a", "aliases": ["x"], "type": ["int"]},
		{"name": "x", "type": ["string"]},
		{"name": "a", "type": ["string"], "default": "dup"}
	]}`)

	if got, _ := idx.Canonical("x"); got != "a" {
		t.Errorf("Canonical(x) = %q, want a", got)
	}
	if got, _ := idx.Types("a"); !reflect.DeepEqual(got, schema.TypeList{schema.TypeInt}) {
		t.Errorf("Types(a) = %v, want [int]", got)
	}
	if d, _ := idx.Default("a"); d.Present() {
		t.Error("duplicate declaration should not replace the first default")
	}
	if got := idx.Fields(); !reflect.DeepEqual(got, []string{"a", "x"}) {
		t.Errorf("Fields() = %v, want [a x]", got)
	}
}

func TestRenameStage(t *testing.T) {
	stage := NewRenameStage(mustIndex(t, pagesSchema))

	tests := []struct {
		name string
		in   record.Record
		want record.Record
	}{
		{
			name: "drops unknown keys",
			in:   record.Record{"url": "u", "unknown": 1, "other": nil},
			want: record.Record{"url": "u"},
		},
		{
			name: "renames aliases",
			in:   record.Record{"id": "ID1", "reg_date": "d"},
			want: record.Record{"code": "ID1", "date": "d"},
		},
		{
			name: "canonical wins over alias",
			in:   record.Record{"code": "canonical", "id": "alias"},
			want: record.Record{"code": "canonical"},
		},
		{
			name: "first declared alias wins",
			in:   record.Record{"reg_date": "second", "lastupdate": "first"},
			want: record.Record{"date": "first"},
		},
		{
			name: "keeps null values",
			in:   record.Record{"startDate": nil},
			want: record.Record{"startDate": nil},
		},
		{
			name: "empty",
			in:   record.Record{},
			want: record.Record{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// map order varies between runs; the outcome must not
			for i := 0; i < 20; i++ {
				got, err := stage.Apply(tt.in)
				if err != nil {
					t.Fatalf("Apply() error = %v", err)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("Apply() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestTransformStage_SeesPreTransformRecord(t *testing.T) {
	idx := mustIndex(t, `{"fields": [
		{"name": "a", "type": ["string"], "transform": "copyFrom(b)"},
		{"name": "b", "type": ["string"], "transform": "copyFrom(a)"},
		{"name": "c", "type": ["string"]}
	]}`)

	in := record.Record{"a": "A", "b": "B", "c": "C"}
	got, err := NewTransformStage(idx).Apply(in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := record.Record{"a": "B", "b": "A", "c": "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
	if in["a"] != "A" {
		t.Error("Apply() should not mutate its input")
	}
}

func TestTransformStage_SkipsAbsentFields(t *testing.T) {
	stage := NewTransformStage(mustIndex(t, pagesSchema))

	got, err := stage.Apply(record.Record{"url": "u"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !reflect.DeepEqual(got, record.Record{"url": "u"}) {
		t.Errorf("Apply() = %v", got)
	}
}

func TestDefaultsStage(t *testing.T) {
	idx := mustIndex(t, `{"fields": [
		{"name": "n", "type": ["null", "string"], "default": null},
		{"name": "b", "type": ["boolean"], "default": false},
		{"name": "i", "type": ["long"], "default": 7},
		{"name": "m", "type": ["string"], "default": {"k": ["v"]}}
	]}`)
	stage := NewDefaultsStage(idx)

	got, err := stage.Apply(record.Record{"extra": 1})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := record.Record{
		"n": nil,
		"b": false,
		"i": json.Number("7"),
		"m": map[string]any{"k": []any{"v"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %#v, want %#v", got, want)
	}

	got["m"].(map[string]any)["k"].([]any)[0] = "changed"
	again, _ := stage.Apply(record.Record{})
	if again["m"].(map[string]any)["k"].([]any)[0] != "v" {
		t.Error("default values should be copied into each output")
	}
}

func TestDefaultsStage_RequiredFieldMissing(t *testing.T) {
	stage := NewDefaultsStage(mustIndex(t, pagesSchema))

	_, err := stage.Apply(record.Record{})
	var missing *apperrors.RequiredFieldMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("Apply() error = %v, want RequiredFieldMissingError", err)
	}
	if missing.Field != "url" {
		t.Errorf("missing field = %q, want url", missing.Field)
	}

	_, err = stage.Apply(record.Record{"url": "u"})
	if !errors.As(err, &missing) || missing.Field != "date" {
		t.Errorf("Apply() error = %v, want missing date", err)
	}
}

func TestCastValue(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		types   schema.TypeList
		want    any
		wantErr bool
	}{
		{name: "comma decimal", value: "1,5", types: schema.TypeList{"double", "float"}, want: 1.5},
		{name: "padded comma decimal", value: " 1,5 ", types: schema.TypeList{"float"}, want: 1.5},
		{name: "empty string int", value: "", types: schema.TypeList{"int", "long"}, want: nil},
		{name: "empty string double", value: "", types: schema.TypeList{"double"}, want: nil},
		{name: "numeric string int", value: "42", types: schema.TypeList{"int"}, want: int64(42)},
		{name: "float to long truncates", value: 3.9, types: schema.TypeList{"long"}, want: int64(3)},
		{name: "json number int", value: json.Number("7"), types: schema.TypeList{"int"}, want: int64(7)},
		{name: "json number double", value: json.Number("2.5"), types: schema.TypeList{"double"}, want: 2.5},
		{name: "int to double", value: 12, types: schema.TypeList{"double"}, want: 12.0},
		{name: "null matches null", value: nil, types: schema.TypeList{"null", "string"}, want: nil},
		{name: "null skips to string", value: "x", types: schema.TypeList{"null", "string"}, want: "x"},
		{name: "null as boolean", value: nil, types: schema.TypeList{"boolean"}, want: false},
		{name: "zero as boolean", value: 0, types: schema.TypeList{"boolean"}, want: false},
		{name: "text as boolean", value: "x", types: schema.TypeList{"boolean"}, want: true},
		{name: "empty text as boolean", value: "", types: schema.TypeList{"boolean"}, want: false},
		{name: "bool as string", value: true, types: schema.TypeList{"string"}, want: "true"},
		{name: "int as string", value: 5, types: schema.TypeList{"string", "int"}, want: "5"},
		{name: "float as string", value: 1.25, types: schema.TypeList{"string"}, want: "1.25"},
		{name: "null as string", value: nil, types: schema.TypeList{"string"}, want: ""},
		{name: "list as string", value: []any{"a", 1}, types: schema.TypeList{"string"}, want: `["a",1]`},
		{name: "unknown tag skipped", value: 5, types: schema.TypeList{"bytes", "string"}, want: "5"},
		{name: "bad int is final", value: "abc", types: schema.TypeList{"int", "string"}, wantErr: true},
		{name: "bad double", value: "1,2,3", types: schema.TypeList{"double"}, wantErr: true},
		{name: "null without null tag", value: nil, types: schema.TypeList{"long"}, wantErr: true},
		{name: "no types", value: "x", types: nil, wantErr: true},
		{name: "null only non-null value", value: "x", types: schema.TypeList{"null"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CastValue("f", tt.value, tt.types)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrCastFailure) {
					t.Fatalf("CastValue() error = %v, want ErrCastFailure", err)
				}
				var castErr *apperrors.CastFailureError
				if errors.As(err, &castErr) && !reflect.DeepEqual(castErr.Types, tt.types.Strings()) {
					t.Errorf("error types = %v, want %v", castErr.Types, tt.types.Strings())
				}
				return
			}
			if err != nil {
				t.Fatalf("CastValue() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CastValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCastStage(t *testing.T) {
	stage := NewCastStage(mustIndex(t, `{"fields": [
		{"name": "s", "type": ["string"]},
		{"name": "n", "type": ["int"]}
	]}`))

	t.Run("idempotent for strings", func(t *testing.T) {
		in := record.Record{"s": "value"}
		once, err := stage.Apply(in)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		twice, err := stage.Apply(once)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !reflect.DeepEqual(once, in) || !reflect.DeepEqual(twice, once) {
			t.Errorf("Apply() = %v then %v, want %v", once, twice, in)
		}
	})

	t.Run("failure carries record", func(t *testing.T) {
		in := record.Record{"s": "ok", "n": "nope"}
		_, err := stage.Apply(in)

		var castErr *apperrors.CastFailureError
		if !errors.As(err, &castErr) {
			t.Fatalf("Apply() error = %v, want CastFailureError", err)
		}
		if castErr.Field != "n" || castErr.Value != "nope" || !reflect.DeepEqual(castErr.Record, in) {
			t.Errorf("CastFailureError = %+v", castErr)
		}
		if castErr.Err == nil {
			t.Error("CastFailureError should wrap the parse error")
		}
	})

	t.Run("undeclared key fails", func(t *testing.T) {
		_, err := stage.Apply(record.Record{"other": "x"})
		if !errors.Is(err, apperrors.ErrCastFailure) {
			t.Errorf("Apply() error = %v, want ErrCastFailure", err)
		}
	})
}
