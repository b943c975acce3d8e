package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jittakal/kafrecordstore/internal/errors"
)

// Parse parses a JSON schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidSchema, err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseYAML parses a YAML schema document with the same layout as the JSON form.
func ParseYAML(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidSchema, err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a schema file, choosing the decoder by extension.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// check enforces only what the lookup tables need: a fields list and a name per field.
func (s *Schema) check() error {
	if s.Fields == nil {
		return fmt.Errorf("%w: missing fields", errors.ErrInvalidSchema)
	}
	for i, f := range s.Fields {
		if f.Name == "" {
			return &errors.ValidationError{Field: fmt.Sprintf("fields[%d]", i), Reason: "name is required"}
		}
	}
	return nil
}

// UnmarshalJSON accepts a single tag string or a list of tags.
func (l *TypeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = TypeList{TypeTag(single)}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("type must be a string or a list of strings: %w", err)
	}
	*l = make(TypeList, len(many))
	for i, t := range many {
		(*l)[i] = TypeTag(t)
	}
	return nil
}

// UnmarshalYAML accepts a scalar tag or a sequence of tags. A bare YAML null
// (null, ~) reads as the null tag.
func (l *TypeList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = TypeList{yamlTag(node)}
		return nil
	case yaml.SequenceNode:
		list := make(TypeList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: type entries must be strings", item.Line)
			}
			list = append(list, yamlTag(item))
		}
		*l = list
		return nil
	default:
		return fmt.Errorf("line %d: type must be a string or a list of strings", node.Line)
	}
}

func yamlTag(node *yaml.Node) TypeTag {
	if node.Tag == "!!null" {
		return TypeNull
	}
	return TypeTag(node.Value)
}

// UnmarshalJSON decodes a field, keeping the presence of the default key
// distinct from a null default.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Field{}
	targets := []struct {
		key    string
		target any
	}{
		{"name", &f.Name},
		{"aliases", &f.Aliases},
		{"type", &f.Type},
		{"transform", &f.Transform},
	}
	for _, dst := range targets {
		if v, ok := raw[dst.key]; ok {
			if err := json.Unmarshal(v, dst.target); err != nil {
				return fmt.Errorf("field %q: %s: %w", f.Name, dst.key, err)
			}
		}
	}
	for _, key := range []string{"doc", "comment"} {
		if v, ok := raw[key]; ok && f.Doc == "" {
			_ = json.Unmarshal(v, &f.Doc)
		}
	}

	if v, ok := raw["default"]; ok {
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: default: %w", f.Name, err)
		}
		f.Default = DefaultOf(value)
	}
	return nil
}

// UnmarshalYAML decodes a field from a YAML mapping.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field must be a mapping", node.Line)
	}

	*f = Field{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]

		var err error
		switch key {
		case "name":
			err = val.Decode(&f.Name)
		case "aliases":
			err = val.Decode(&f.Aliases)
		case "type":
			err = val.Decode(&f.Type)
		case "transform":
			err = val.Decode(&f.Transform)
		case "doc", "comment":
			if f.Doc == "" {
				err = val.Decode(&f.Doc)
			}
		case "default":
			var value any
			err = val.Decode(&value)
			f.Default = DefaultOf(value)
		}
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", val.Line, key, err)
		}
	}
	return nil
}
