package encoder

import (
	"testing"

	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

const testSchemaJSON = `{
  "type": "record",
  "name": "Page",
  "namespace": "com.example",
  "fields": [
    {"name": "url", "type": ["string"]},
    {"name": "code", "aliases": ["id"], "type": ["null", "string"], "default": null},
    {"name": "count", "type": ["null", "long"], "default": null},
    {"name": "score", "type": ["double"]},
    {"name": "ready", "type": ["boolean"], "transform": "int2boolean", "default": false},
    {"name": "small", "type": ["int"]}
  ]
}`

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(testSchemaJSON))
	if err != nil {
		t.Fatalf("schema.Parse() error = %v", err)
	}
	return s
}

func testRecords() []record.Record {
	return []record.Record{
		{"url": "http://a.com", "code": "A", "count": int64(10), "score": 1.5, "ready": true, "small": int64(7)},
		{"url": "http://b.com", "code": nil, "count": nil, "score": 2.0, "ready": false, "small": int64(-1)},
	}
}
