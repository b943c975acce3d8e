package record

import (
	"testing"
	"time"
)

func TestPartitionID_String(t *testing.T) {
	tests := []struct {
		name      string
		partition PartitionID
		want      string
	}{
		{"basic partition", PartitionID{Topic: "test-topic", Partition: 0}, "test-topic-0"},
		{"partition 10", PartitionID{Topic: "my-topic", Partition: 10}, "my-topic-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.partition.String(); got != tt.want {
				t.Errorf("PartitionID.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	original := Record{"a": 1, "b": nil}
	clone := original.Clone()
	clone["a"] = 2
	clone["c"] = "new"

	if original["a"] != 1 {
		t.Errorf("original mutated: a = %v", original["a"])
	}
	if _, ok := original["c"]; ok {
		t.Error("original gained key c")
	}
	if v, ok := clone.Lookup("b"); !ok || v != nil {
		t.Errorf("Lookup(b) = %v, %v; want nil, true", v, ok)
	}
}

func TestEventTime(t *testing.T) {
	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	millis := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name  string
		rec   Record
		field string
		want  time.Time
	}{
		{"no field configured", Record{"ts": millis}, "", fallback},
		{"missing field", Record{}, "ts", fallback},
		{"nil value", Record{"ts": nil}, "ts", fallback},
		{"epoch millis int64", Record{"ts": millis}, "ts", time.UnixMilli(millis).UTC()},
		{"epoch millis float64", Record{"ts": float64(millis)}, "ts", time.UnixMilli(millis).UTC()},
		{"rfc3339 string", Record{"ts": "2024-06-01T12:00:00Z"}, "ts", time.UnixMilli(millis).UTC()},
		{"date only string", Record{"ts": "2024-06-01"}, "ts", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"unparseable string", Record{"ts": "yesterday"}, "ts", fallback},
		{"boolean", Record{"ts": true}, "ts", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EventTime(tt.rec, tt.field, fallback); !got.Equal(tt.want) {
				t.Errorf("EventTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
