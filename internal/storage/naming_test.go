package storage

import (
	"regexp"
	"testing"
	"time"

	"github.com/jittakal/kafrecordstore/pkg/record"
)

func TestParseBucketPath(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    BucketPath
		wantErr bool
	}{
		{
			name: "bucket with nested prefix",
			raw:  "gs://my-bucket/some/prefix",
			want: BucketPath{Scheme: "gs", Bucket: "my-bucket", Prefix: "some/prefix"},
		},
		{
			name: "bucket only",
			raw:  "gs://my-bucket",
			want: BucketPath{Scheme: "gs", Bucket: "my-bucket"},
		},
		{
			name: "trailing slash trimmed",
			raw:  "s3://data/raw/",
			want: BucketPath{Scheme: "s3", Bucket: "data", Prefix: "raw"},
		},
		{
			name:    "missing scheme",
			raw:     "my-bucket/prefix",
			wantErr: true,
		},
		{
			name:    "empty bucket",
			raw:     "gs:///prefix",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBucketPath(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBucketPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBucketPath() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBucketPath_String(t *testing.T) {
	for _, raw := range []string{"gs://b", "gs://b/p", "s3://b/p/q"} {
		bp, err := ParseBucketPath(raw)
		if err != nil {
			t.Fatalf("ParseBucketPath(%q) error = %v", raw, err)
		}
		if bp.String() != raw {
			t.Errorf("String() = %q, want %q", bp.String(), raw)
		}
	}
}

func TestObjectName(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	pattern := regexp.MustCompile(`^records_20250304_050607_[0-9a-f-]{36}\.parquet$`)

	a := ObjectName(now, ".parquet")
	b := ObjectName(now, ".parquet")
	if !pattern.MatchString(a) {
		t.Errorf("ObjectName() = %q, does not match %s", a, pattern)
	}
	if a == b {
		t.Errorf("ObjectName() should be unique within the same second, got %q twice", a)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		routed string
		scheme string
		want   string
	}{
		{"strips scheme and bucket", "gs://bucket/a/b/", "gs", "a/b/f.avro"},
		{"bucket only", "s3://bucket/", "s3", "f.avro"},
		{"no scheme", "a/b/", "gs", "a/b/f.avro"},
		{"leading slash", "/a/", "wasbs", "a/f.avro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey(tt.routed, tt.scheme, "f.avro"); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyPrefix(t *testing.T) {
	if got := keyPrefix("gs://bucket/t/pid=1/", "gs"); got != "t/pid=1/" {
		t.Errorf("keyPrefix() = %q, want %q", got, "t/pid=1/")
	}
	if got := keyPrefix("gs://bucket/t/pid", "gs"); got != "t/pid" {
		t.Errorf("keyPrefix() = %q, want %q", got, "t/pid")
	}
	if got := keyPrefix("gs://bucket/", "gs"); got != "" {
		t.Errorf("keyPrefix() = %q, want empty", got)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		format record.FileFormat
		want   string
	}{
		{record.FormatParquet, "application/octet-stream"},
		{record.FormatAvro, "application/avro"},
		{record.FormatJSON, "application/x-ndjson"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := contentType(tt.format); got != tt.want {
				t.Errorf("contentType() = %v, want %v", got, tt.want)
			}
		})
	}
}
