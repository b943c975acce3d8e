package encoder

import (
	"fmt"
	"math"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// asInt64 accepts Go integer kinds only. Normalized records carry int64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asInt32(v any) (int32, bool) {
	n, ok := asInt64(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

// asFloat64 accepts floats and integers.
func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if n, ok := asInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

// columnTag is the first supported non-null tag; it decides the physical
// type of a column in formats without unions.
func columnTag(types schema.TypeList) schema.TypeTag {
	for _, t := range types {
		if t != schema.TypeNull && t.Known() {
			return t
		}
	}
	return schema.TypeNull
}

func mismatch(field string, rec record.Record, format string, args ...any) error {
	return &errors.SchemaMismatchError{Field: field, Record: rec, Err: fmt.Errorf(format, args...)}
}
