package transform

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Transformer normalizes records with the fixed Rename, Transform, Defaults,
// Cast chain. It is safe for concurrent use.
type Transformer struct {
	schema *schema.Schema
	index  *Index
	chain  Chain
}

// New builds a Transformer from s. It fails with an
// errors.UnsupportedTransformError when a field's transform is not registered.
// The schema is copied; later changes to s have no effect.
func New(s *schema.Schema) (*Transformer, error) {
	owned := s.Clone()
	idx, err := BuildIndex(owned)
	if err != nil {
		return nil, err
	}

	return &Transformer{
		schema: owned,
		index:  idx,
		chain: Chain{
			NewRenameStage(idx),
			NewTransformStage(idx),
			NewDefaultsStage(idx),
			NewCastStage(idx),
		},
	}, nil
}

// Apply returns the normalized form of rec. Either every stage succeeds or
// an error is returned with a nil record.
func (t *Transformer) Apply(rec record.Record) (record.Record, error) {
	return t.chain.Apply(rec)
}

// RecordError is the failure of one record in ApplyAll.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ApplyAll normalizes every record. It returns the successful outputs in
// input order and a combined error holding one *RecordError per failure;
// use multierr.Errors to split it.
func (t *Transformer) ApplyAll(recs []record.Record) ([]record.Record, error) {
	out := make([]record.Record, 0, len(recs))
	var errs error
	for i, rec := range recs {
		normalized, err := t.Apply(rec)
		if err != nil {
			errs = multierr.Append(errs, &RecordError{Index: i, Err: err})
			continue
		}
		out = append(out, normalized)
	}
	return out, errs
}

// Schema returns a copy of the schema the transformer was built from.
func (t *Transformer) Schema() *schema.Schema {
	return t.schema.Clone()
}

// Index returns the transformer's lookup tables.
func (t *Transformer) Index() *Index {
	return t.index
}
