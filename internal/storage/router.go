// Package storage implements partition routing, rotation and the storage
// backends normalized record files are written to.
package storage

import (
	"fmt"
	"path"
	"time"

	"github.com/jittakal/kafrecordstore/internal/calendar"
	"github.com/jittakal/kafrecordstore/pkg/record"
	"github.com/jittakal/kafrecordstore/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// Layout selects the time partition segment of a path.
type Layout string

const (
	// LayoutDate partitions by day: dt=YYYY-MM-DD.
	LayoutDate Layout = "date"
	// LayoutWeek partitions by ISO week: wk=YYYYWww.
	LayoutWeek Layout = "week"
)

// DefaultRouter implements Hive-style partitioning for storage paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
	version  string
	layout   Layout
}

// NewRouter creates a new storage router. An empty layout means LayoutDate.
func NewRouter(protocol, bucket, basePath, version string, layout Layout) *DefaultRouter {
	if layout == "" {
		layout = LayoutDate
	}
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: basePath,
		version:  version,
		layout:   layout,
	}
}

// Route returns the storage path for a partition at the given event time.
// Format: protocol://bucket/basePath/topic/version/dt=YYYY-MM-DD/pid=N/
// Empty basePath and version segments are left out.
func (r *DefaultRouter) Route(partitionID record.PartitionID, eventTime time.Time) string {
	var timeSegment string
	switch r.layout {
	case LayoutWeek:
		timeSegment = "wk=" + calendar.Week(eventTime)
	default:
		timeSegment = "dt=" + calendar.Date(eventTime)
	}

	p := path.Join(
		r.basePath,
		partitionID.Topic,
		r.version,
		timeSegment,
		fmt.Sprintf("pid=%d", partitionID.Partition),
	)
	return fmt.Sprintf("%s://%s/%s/", r.protocol, r.bucket, p)
}

// NewPolicy creates a new rotation policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// RotationStrategy determines when to rotate files.
type RotationStrategy string

const (
	StrategyComposite RotationStrategy = "composite"
	StrategySizeOnly  RotationStrategy = "size"
	StrategyTimeOnly  RotationStrategy = "time"
	StrategyCount     RotationStrategy = "count"
)

// PolicyConfig configures rotation behavior.
type PolicyConfig struct {
	MaxFileSizeMB      int64
	MaxRecordsPerFile  int
	MaxDurationSeconds int
	Strategy           string
}

// CompositePolicy rotates based on multiple criteria. A single-criterion
// strategy ignores the other limits.
type CompositePolicy struct {
	maxSizeBytes int64
	maxRecords   int
	maxDuration  time.Duration
}

// NewCompositePolicy creates a new composite rotation policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	p := &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeMB * 1024 * 1024,
		maxRecords:   config.MaxRecordsPerFile,
		maxDuration:  time.Duration(config.MaxDurationSeconds) * time.Second,
	}

	switch RotationStrategy(config.Strategy) {
	case StrategySizeOnly:
		p.maxRecords, p.maxDuration = 0, 0
	case StrategyTimeOnly:
		p.maxSizeBytes, p.maxRecords = 0, 0
	case StrategyCount:
		p.maxSizeBytes, p.maxDuration = 0, 0
	}
	return p
}

// ShouldRotate returns true if any rotation condition is met.
func (p *CompositePolicy) ShouldRotate(stats record.FileStats) bool {
	// Size-based rotation
	if p.maxSizeBytes > 0 && stats.SizeBytes >= p.maxSizeBytes {
		return true
	}

	// Count-based rotation
	if p.maxRecords > 0 && stats.RecordCount >= p.maxRecords {
		return true
	}

	// Time-based rotation
	if p.maxDuration > 0 && !stats.FirstWriteTime.IsZero() {
		age := time.Since(stats.FirstWriteTime)
		if age >= p.maxDuration {
			return true
		}
	}

	return false
}
