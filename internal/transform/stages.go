package transform

import (
	"strings"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Stage is one record to record step of the pipeline.
type Stage interface {
	Apply(rec record.Record) (record.Record, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(rec record.Record) (record.Record, error)

// Apply calls f(rec).
func (f StageFunc) Apply(rec record.Record) (record.Record, error) {
	return f(rec)
}

// Chain runs stages in order, feeding each output into the next stage.
// The first error stops the chain and is returned unchanged.
type Chain []Stage

// Apply runs the chain. An empty chain returns a copy of rec.
func (c Chain) Apply(rec record.Record) (record.Record, error) {
	out := rec.Clone()
	for _, stage := range c {
		var err error
		if out, err = stage.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RenameStage drops keys the schema does not know and renames aliases to
// canonical names. When several keys of one record map to the same field,
// the canonical name wins, then the alias declared first.
type RenameStage struct {
	idx *Index
}

// NewRenameStage returns a rename stage over idx.
func NewRenameStage(idx *Index) RenameStage {
	return RenameStage{idx: idx}
}

// Apply never fails.
func (s RenameStage) Apply(rec record.Record) (record.Record, error) {
	out := make(record.Record, len(rec))
	ranks := make(map[string]int, len(rec))
	for key, value := range rec {
		target, ok := s.idx.rename[key]
		if !ok {
			continue
		}
		if best, seen := ranks[target.canonical]; seen && best <= target.rank {
			continue
		}
		ranks[target.canonical] = target.rank
		out[target.canonical] = value
	}
	return out, nil
}

// TransformStage replaces the values of fields that declare a transform.
// Every transform sees the record as it was before the stage ran.
type TransformStage struct {
	idx *Index
}

// NewTransformStage returns a transform stage over idx.
func NewTransformStage(idx *Index) TransformStage {
	return TransformStage{idx: idx}
}

// Apply keeps the key set of rec.
func (s TransformStage) Apply(rec record.Record) (record.Record, error) {
	out := make(record.Record, len(rec))
	for key, value := range rec {
		expr, ok := s.idx.transforms[key]
		if !ok {
			out[key] = value
			continue
		}
		v, err := expr.Eval(key, value, rec)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// DefaultsStage produces exactly the schema's fields, filling absent ones
// from their defaults.
type DefaultsStage struct {
	idx *Index
}

// NewDefaultsStage returns a defaults stage over idx.
func NewDefaultsStage(idx *Index) DefaultsStage {
	return DefaultsStage{idx: idx}
}

// Apply fails with RequiredFieldMissingError for the first absent field,
// in declaration order, that has no default.
func (s DefaultsStage) Apply(rec record.Record) (record.Record, error) {
	out := make(record.Record, len(s.idx.fields))
	for _, field := range s.idx.fields {
		if v, ok := rec[field]; ok {
			out[field] = v
			continue
		}
		v, ok := s.idx.defaults[field].Copy().Value()
		if !ok {
			return nil, &errors.RequiredFieldMissingError{Field: field, Source: "defaults", Record: rec}
		}
		out[field] = v
	}
	return out, nil
}

// CastStage coerces each value to its field's declared types.
type CastStage struct {
	idx *Index
}

// NewCastStage returns a cast stage over idx.
func NewCastStage(idx *Index) CastStage {
	return CastStage{idx: idx}
}

// Apply keeps the key set of rec. A key the schema does not declare has no
// types to try and fails like any other uncastable value.
func (s CastStage) Apply(rec record.Record) (record.Record, error) {
	out := make(record.Record, len(rec))
	for key, value := range rec {
		v, err := castValue(key, value, s.idx.casts[key])
		if err != nil {
			err.Record = rec
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// CastValue tries types in order and returns the first result:
//
//	null            only a null value, result null
//	int, long       "" is null, else integer conversion; failure is final
//	boolean         truthiness, never fails
//	double, float   "" is null, commas read as decimal points; failure is final
//	string          text rendering, never fails
//
// Unknown tags are skipped. Integers come back as int64 and floats as float64.
// Failures are *errors.CastFailureError without record context.
func CastValue(field string, value any, types schema.TypeList) (any, error) {
	v, err := castValue(field, value, types)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func castValue(field string, value any, types schema.TypeList) (any, *errors.CastFailureError) {
	fail := func(err error) *errors.CastFailureError {
		return &errors.CastFailureError{Field: field, Value: value, Types: types.Strings(), Err: err}
	}

	for _, tag := range types {
		switch tag {
		case schema.TypeNull:
			if value == nil {
				return nil, nil
			}

		case schema.TypeInt, schema.TypeLong:
			if s, ok := value.(string); ok && s == "" {
				return nil, nil
			}
			n, err := toInt(value)
			if err != nil {
				return nil, fail(err)
			}
			return n, nil

		case schema.TypeBoolean:
			return truthy(value), nil

		case schema.TypeDouble, schema.TypeFloat:
			in := value
			if s, ok := value.(string); ok {
				if s == "" {
					return nil, nil
				}
				in = strings.ReplaceAll(s, ",", ".")
			}
			f, err := toFloat(in)
			if err != nil {
				return nil, fail(err)
			}
			return f, nil

		case schema.TypeString:
			return toString(value), nil
		}
	}
	return nil, fail(nil)
}
