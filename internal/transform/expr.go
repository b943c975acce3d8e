package transform

import (
	"fmt"
	"regexp"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// ExprKind identifies a registered transform.
type ExprKind int

const (
	// Int2Boolean maps an integer-like value to value > 0.
	Int2Boolean ExprKind = iota + 1
	// CopyFrom replaces the value with another field of the record.
	CopyFrom
)

func (k ExprKind) String() string {
	switch k {
	case Int2Boolean:
		return "int2boolean"
	case CopyFrom:
		return "copyFrom"
	default:
		return fmt.Sprintf("ExprKind(%d)", int(k))
	}
}

var copyFromPattern = regexp.MustCompile(`^copyFrom\((\w+)\)$`)

// Expr is a parsed transform expression.
type Expr struct {
	Kind ExprKind
	// Source is the field read by CopyFrom.
	Source string
	// Text is the expression as written in the schema.
	Text string
}

// ParseExpr resolves an expression against the registry. field is only used
// for error context.
func ParseExpr(field, text string) (Expr, error) {
	if text == "int2boolean" {
		return Expr{Kind: Int2Boolean, Text: text}, nil
	}
	if m := copyFromPattern.FindStringSubmatch(text); m != nil {
		return Expr{Kind: CopyFrom, Source: m[1], Text: text}, nil
	}
	return Expr{}, &errors.UnsupportedTransformError{Field: field, Expression: text}
}

// Eval computes the new value of field. rec is the record as it was before
// any transform ran.
func (e Expr) Eval(field string, value any, rec record.Record) (any, error) {
	switch e.Kind {
	case Int2Boolean:
		if value == nil {
			return nil, nil
		}
		n, err := toInt(value)
		if err != nil {
			return nil, &errors.TransformError{Field: field, Expression: e.Text, Value: value, Err: err}
		}
		return n > 0, nil

	case CopyFrom:
		v, ok := rec[e.Source]
		if !ok {
			return nil, &errors.RequiredFieldMissingError{Field: e.Source, Source: e.Text, Record: rec}
		}
		return v, nil

	default:
		return nil, &errors.UnsupportedTransformError{Field: field, Expression: e.Text}
	}
}

func (e Expr) String() string {
	return e.Text
}
