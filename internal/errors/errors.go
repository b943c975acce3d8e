// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Sentinel errors for common conditions.
var (
	ErrUnsupportedTransform = errors.New("unsupported transform")
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrCastFailure          = errors.New("cast failure")
	ErrTransformFailed      = errors.New("transform failed")
	ErrSchemaMismatch       = errors.New("record does not match schema")
	ErrInvalidSchema        = errors.New("invalid schema")
	ErrInvalidRecord        = errors.New("invalid record")
	ErrBufferFull           = errors.New("buffer is full")
	ErrConsumerClosed       = errors.New("consumer is closed")
	ErrWriterClosed         = errors.New("storage writer is closed")
	ErrConnectionLost       = errors.New("connection lost")
)

// UnsupportedTransformError is returned while loading a schema whose field
// declares a transform expression that matches no registered transform.
type UnsupportedTransformError struct {
	Field      string
	Expression string
}

func (e *UnsupportedTransformError) Error() string {
	return fmt.Sprintf("invalid or unsupported transform %q for field %q", e.Expression, e.Field)
}

func (e *UnsupportedTransformError) Is(target error) bool {
	return target == ErrUnsupportedTransform
}

// RequiredFieldMissingError reports a field that had to be present in a record.
// Source names the stage that required it ("defaults" or the transform expression).
type RequiredFieldMissingError struct {
	Field  string
	Source string
	Record record.Record
}

func (e *RequiredFieldMissingError) Error() string {
	return fmt.Sprintf("required field %q not in record %v (%s)", e.Field, e.Record, e.Source)
}

func (e *RequiredFieldMissingError) Is(target error) bool {
	return target == ErrRequiredFieldMissing
}

// CastFailureError reports a value that could not be coerced to any declared type.
type CastFailureError struct {
	Field  string
	Value  any
	Types  []string
	Record record.Record
	Err    error
}

func (e *CastFailureError) Error() string {
	msg := fmt.Sprintf("cannot cast field %q with value %#v to any of [%s] in record %v",
		e.Field, e.Value, strings.Join(e.Types, ", "), e.Record)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *CastFailureError) Unwrap() error {
	return e.Err
}

func (e *CastFailureError) Is(target error) bool {
	return target == ErrCastFailure
}

// TransformError reports a transform expression that failed on a concrete value.
type TransformError struct {
	Field      string
	Expression string
	Value      any
	Err        error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s failed for field %q with value %#v: %v", e.Expression, e.Field, e.Value, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

func (e *TransformError) Is(target error) bool {
	return target == ErrTransformFailed
}

// SchemaMismatchError is returned by row writers when a normalized record
// does not fit the output schema.
type SchemaMismatchError struct {
	Field  string
	Record record.Record
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema mismatch: field=%s: %v for row -> %v", e.Field, e.Err, e.Record)
	}
	return fmt.Sprintf("schema mismatch: %v for row -> %v", e.Err, e.Record)
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// ValidationError represents a schema validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field=%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// ProcessingError represents an error during record processing.
type ProcessingError struct {
	PartitionID record.PartitionID
	Offset      int64
	Err         error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	PartitionID record.PartitionID
	Offset      int64
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Kind returns a stable, low-cardinality label for err, suitable for metric
// labels and dead letter headers.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnsupportedTransform):
		return "unsupported_transform"
	case errors.Is(err, ErrRequiredFieldMissing):
		return "required_field_missing"
	case errors.Is(err, ErrCastFailure):
		return "cast_failure"
	case errors.Is(err, ErrTransformFailed):
		return "transform_failed"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, ErrInvalidSchema):
		return "invalid_schema"
	default:
		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			return "storage"
		}
		return "unknown"
	}
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return errors.Is(err, ErrConnectionLost)
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}
