// Package schema loads the declarative record schema that drives normalization.
//
// A schema is an Avro-style record definition whose fields may carry two
// extensions: aliases used to rename incoming keys and a transform expression
// that derives the field value. Schemas are read from JSON (.avsc, .json) or
// YAML (.yaml, .yml) documents.
package schema

import (
	"fmt"
	"strings"
)

// TypeTag is a primitive target type a field value can be cast to.
type TypeTag string

const (
	TypeNull    TypeTag = "null"
	TypeInt     TypeTag = "int"
	TypeLong    TypeTag = "long"
	TypeBoolean TypeTag = "boolean"
	TypeDouble  TypeTag = "double"
	TypeFloat   TypeTag = "float"
	TypeString  TypeTag = "string"
)

// Known reports whether t is one of the supported primitive tags.
func (t TypeTag) Known() bool {
	switch t {
	case TypeNull, TypeInt, TypeLong, TypeBoolean, TypeDouble, TypeFloat, TypeString:
		return true
	}
	return false
}

// TypeList is the ordered sequence of tags a field declares. Order matters:
// casting tries the tags front to back.
type TypeList []TypeTag

// Strings returns the tags as plain strings.
func (l TypeList) Strings() []string {
	out := make([]string, len(l))
	for i, t := range l {
		out[i] = string(t)
	}
	return out
}

// Nullable reports whether the list declares the null tag.
func (l TypeList) Nullable() bool {
	for _, t := range l {
		if t == TypeNull {
			return true
		}
	}
	return false
}

// Primary returns the first non-null tag, or TypeNull if there is none.
func (l TypeList) Primary() TypeTag {
	for _, t := range l {
		if t != TypeNull {
			return t
		}
	}
	return TypeNull
}

func (l TypeList) String() string {
	return "[" + strings.Join(l.Strings(), ", ") + "]"
}

// Default is the declared default of a field: either absent or present with a
// value. A present default may hold nil, which is distinct from absent.
type Default struct {
	value   any
	present bool
}

// NoDefault returns an absent default.
func NoDefault() Default {
	return Default{}
}

// DefaultOf returns a present default holding v.
func DefaultOf(v any) Default {
	return Default{value: v, present: true}
}

// Value returns the default value and whether one was declared.
func (d Default) Value() (any, bool) {
	return d.value, d.present
}

// Copy returns a default whose value shares no maps or slices with d.
func (d Default) Copy() Default {
	if !d.present {
		return d
	}
	return Default{value: copyValue(d.value), present: true}
}

// Present reports whether a default was declared.
func (d Default) Present() bool {
	return d.present
}

func (d Default) String() string {
	if !d.present {
		return "NoDefault"
	}
	return fmt.Sprintf("Default(%v)", d.value)
}

// Field describes one output field.
type Field struct {
	Name      string
	Aliases   []string
	Type      TypeList
	Default   Default
	Transform string
	Doc       string
}

// Schema is an ordered list of fields plus the record naming used when the
// schema is rendered for Avro.
type Schema struct {
	Type      string  `json:"type" yaml:"type"`
	Name      string  `json:"name" yaml:"name"`
	Namespace string  `json:"namespace,omitempty" yaml:"namespace"`
	Doc       string  `json:"doc,omitempty" yaml:"doc"`
	Fields    []Field `json:"fields" yaml:"fields"`
}

// FieldNames returns the canonical field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field with the given canonical name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Clone returns a deep copy of the schema, default values included.
func (s *Schema) Clone() *Schema {
	out := *s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		f.Aliases = append([]string(nil), f.Aliases...)
		f.Type = append(TypeList(nil), f.Type...)
		f.Default = f.Default.Copy()
		out.Fields[i] = f
	}
	return &out
}

// copyValue copies the JSON-like containers a default value can hold.
func copyValue(v any) any {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, e := range c {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, e := range c {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
