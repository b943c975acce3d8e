package schema

import (
	"encoding/json"
	"fmt"

	"github.com/linkedin/goavro/v2"
)

const defaultRecordName = "NormalizedRecord"

// AvroJSON renders the schema as a plain Avro record schema. Aliases, docs and
// defaults are kept; transform expressions are dropped since Avro has no
// notion of them. Every field type is rendered as a union.
func (s *Schema) AvroJSON() ([]byte, error) {
	fields := make([]map[string]any, 0, len(s.Fields))
	for _, f := range s.Fields {
		field := map[string]any{
			"name": f.Name,
			"type": f.Type.Strings(),
		}
		if len(f.Aliases) > 0 {
			field["aliases"] = f.Aliases
		}
		if f.Doc != "" {
			field["doc"] = f.Doc
		}
		if v, ok := f.Default.Value(); ok {
			field["default"] = v
		}
		fields = append(fields, field)
	}

	name := s.Name
	if name == "" {
		name = defaultRecordName
	}
	doc := map[string]any{
		"type":   "record",
		"name":   name,
		"fields": fields,
	}
	if s.Namespace != "" {
		doc["namespace"] = s.Namespace
	}
	if s.Doc != "" {
		doc["doc"] = s.Doc
	}

	return json.Marshal(doc)
}

// Codec compiles the Avro rendering of the schema.
func (s *Schema) Codec() (*goavro.Codec, error) {
	avroJSON, err := s.AvroJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to render avro schema: %w", err)
	}
	codec, err := goavro.NewCodec(string(avroJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}
	return codec, nil
}
