package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jittakal/kafrecordstore/pkg/record"
)

// BucketPath is a storage location of the form scheme://bucket/prefix.
type BucketPath struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseBucketPath splits raw into scheme, bucket and prefix. The prefix has
// no leading or trailing slash and may be empty.
func ParseBucketPath(raw string) (BucketPath, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return BucketPath{}, fmt.Errorf("invalid bucket path %q: missing scheme", raw)
	}

	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return BucketPath{}, fmt.Errorf("invalid bucket path %q: empty bucket", raw)
	}

	return BucketPath{
		Scheme: scheme,
		Bucket: bucket,
		Prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (b BucketPath) String() string {
	if b.Prefix == "" {
		return fmt.Sprintf("%s://%s", b.Scheme, b.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s", b.Scheme, b.Bucket, b.Prefix)
}

// ObjectName returns a unique file name: records_YYYYMMDD_HHMMSS_<uuid><ext>.
func ObjectName(now time.Time, ext string) string {
	return fmt.Sprintf("records_%s_%s%s", now.UTC().Format("20060102_150405"), uuid.NewString(), ext)
}

// objectKey strips "scheme://bucket/" from a routed path and returns the key
// of name under it.
func objectKey(routed, scheme, name string) string {
	key := routed
	if rest, ok := strings.CutPrefix(routed, scheme+"://"); ok {
		_, key, _ = strings.Cut(rest, "/")
	}
	return strings.TrimPrefix(path.Join(key, name), "/")
}

// keyPrefix is objectKey for listing: a trailing slash on routed is kept so
// "pid=1/" does not match "pid=10/".
func keyPrefix(routed, scheme string) string {
	key := objectKey(routed, scheme, "")
	if key != "" && strings.HasSuffix(routed, "/") {
		key += "/"
	}
	return key
}

func contentType(format record.FileFormat) string {
	switch format {
	case record.FormatAvro:
		return "application/avro"
	case record.FormatJSON:
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}
