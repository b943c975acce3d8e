// Package pipeline runs consumed records through normalization, buffers them
// per partition and writes each rotated buffer as one file.
//
// Offsets are committed only after the file holding the record is stored, or
// after a rejected record reached the dead letter topic and nothing older is
// still buffered for its partition.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/buffer"
	"github.com/jittakal/kafrecordstore/pkg/consumer"
	"github.com/jittakal/kafrecordstore/pkg/record"
	"github.com/jittakal/kafrecordstore/pkg/storage"
)

// Dead letter reasons.
const (
	ReasonDecode    = "decode"
	ReasonTransform = "transform"
	ReasonOversized = "oversized"
	ReasonStorage   = "storage"
)

const defaultFlushInterval = 10 * time.Second

// Normalizer turns a decoded record into its normalized form.
type Normalizer interface {
	Apply(rec record.Record) (record.Record, error)
}

// MetricsCollector defines metrics operations for the processor.
type MetricsCollector interface {
	IncRecordsProcessed(topic string, partition int32, status string)
	IncRecordsFailed(topic string, kind string)
	IncDLQPublished(topic string, reason string)
	SetBufferStats(topic string, partition int32, sizeBytes int64, recordCount int)
	IncOffsetCommits(topic string, partition int32, status string)
	ObserveCommitLatency(topic string, partition int32, duration float64)
	ObserveProcessingDuration(topic string, operation string, duration float64)
}

type nopMetrics struct{}

func (nopMetrics) IncRecordsProcessed(string, int32, string)         {}
func (nopMetrics) IncRecordsFailed(string, string)                   {}
func (nopMetrics) IncDLQPublished(string, string)                    {}
func (nopMetrics) SetBufferStats(string, int32, int64, int)          {}
func (nopMetrics) IncOffsetCommits(string, int32, string)            {}
func (nopMetrics) ObserveCommitLatency(string, int32, float64)       {}
func (nopMetrics) ObserveProcessingDuration(string, string, float64) {}

// Config contains processor configuration.
type Config struct {
	// EventTimeField names the normalized field used for partition routing.
	// Empty routes by Kafka timestamp.
	EventTimeField string
	// FlushInterval is how often time based rotation is checked.
	FlushInterval time.Duration
}

// Dependencies are the collaborators a Processor drives.
type Dependencies struct {
	Normalizer Normalizer
	Buffers    buffer.Manager
	Policy     storage.RotationPolicy
	Router     storage.Router
	Writer     storage.Writer
	DLQ        consumer.DLQPublisher
	Logger     *slog.Logger
	Metrics    MetricsCollector
}

func (d Dependencies) validate() error {
	var errs error
	if d.Normalizer == nil {
		errs = multierr.Append(errs, stderrors.New("normalizer is required"))
	}
	if d.Buffers == nil {
		errs = multierr.Append(errs, stderrors.New("buffer manager is required"))
	}
	if d.Policy == nil {
		errs = multierr.Append(errs, stderrors.New("rotation policy is required"))
	}
	if d.Router == nil {
		errs = multierr.Append(errs, stderrors.New("router is required"))
	}
	if d.Writer == nil {
		errs = multierr.Append(errs, stderrors.New("storage writer is required"))
	}
	if d.DLQ == nil {
		errs = multierr.Append(errs, stderrors.New("dlq publisher is required"))
	}
	return errs
}

// pendingCommit is the commit of a rejected record held back until the
// records buffered before it are stored.
type pendingCommit struct {
	offset int64
	commit func() error
}

// Processor normalizes consumed records and stores them in batches.
type Processor struct {
	deps    Dependencies
	config  Config
	logger  *slog.Logger
	metrics MetricsCollector

	mu        sync.Mutex
	pending   map[record.PartitionID]pendingCommit
	running   bool
	lastFlush time.Time
	fatal     error
}

// New creates a processor.
func New(config Config, deps Dependencies) (*Processor, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid processor dependencies: %w", err)
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaultFlushInterval
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics MetricsCollector = nopMetrics{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}

	return &Processor{
		deps:    deps,
		config:  config,
		logger:  logger.With("component", "pipeline"),
		metrics: metrics,
		pending: make(map[record.PartitionID]pendingCommit),
	}, nil
}

// Run processes records until ctx is done or records is closed, then flushes
// every buffer. Consumer errors are logged. A record or batch that can be
// neither stored nor dead lettered stops Run with its offset uncommitted.
func (p *Processor) Run(ctx context.Context, records <-chan *record.ConsumedRecord, consumerErrs <-chan error) error {
	p.setRunning(true)
	defer p.setRunning(false)

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	p.logger.Info("processor started", "flush_interval", p.config.FlushInterval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context cancelled, flushing buffers")
			return p.shutdown(context.WithoutCancel(ctx))

		case err, ok := <-consumerErrs:
			if !ok {
				consumerErrs = nil
				continue
			}
			p.logger.Error("consumer error", "error", err)

		case consumed, ok := <-records:
			if !ok {
				p.logger.Info("record channel closed, flushing buffers")
				return p.shutdown(context.WithoutCancel(ctx))
			}
			if err := p.Handle(ctx, consumed); err != nil {
				return p.fail(err)
			}

		case <-ticker.C:
			if err := p.FlushDue(ctx); err != nil {
				return p.fail(err)
			}
		}
	}
}

func (p *Processor) shutdown(ctx context.Context) error {
	if err := p.FlushAll(ctx); err != nil {
		return p.fail(err)
	}
	p.logger.Info("processor stopped")
	return nil
}

func (p *Processor) fail(err error) error {
	p.mu.Lock()
	p.fatal = err
	p.mu.Unlock()
	p.logger.Error("processor stopped on error", "error", err)
	return err
}

func (p *Processor) setRunning(running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = running
}

// Handle normalizes and buffers one consumed record. Records that fail to
// decode or normalize go to the dead letter topic. The returned error means
// the record could neither be stored nor dead lettered.
func (p *Processor) Handle(ctx context.Context, consumed *record.ConsumedRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	md := consumed.Metadata
	pid := record.PartitionID{Topic: md.Topic, Partition: md.Partition}

	if consumed.Err != nil {
		return p.reject(ctx, pid, consumed.Raw, md, consumed.CommitFunc, ReasonDecode, consumed.Err)
	}

	start := time.Now()
	normalized, err := p.deps.Normalizer.Apply(consumed.Record)
	p.metrics.ObserveProcessingDuration(md.Topic, "transform", time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("record rejected",
			"topic", md.Topic,
			"partition", md.Partition,
			"offset", md.Offset,
			"error_kind", errors.Kind(err),
			"error", err,
		)
		return p.reject(ctx, pid, consumed.Raw, md, consumed.CommitFunc, ReasonTransform, err)
	}

	entry := record.Entry{
		Record:     normalized,
		Raw:        consumed.Raw,
		Kafka:      md,
		EventTime:  record.EventTime(normalized, p.config.EventTimeField, md.Timestamp),
		CommitFunc: consumed.CommitFunc,
	}

	buf := p.deps.Buffers.GetOrCreate(pid)
	if err := buf.Add(entry); err != nil {
		if !stderrors.Is(err, errors.ErrBufferFull) {
			return err
		}
		if err := p.flush(ctx, pid); err != nil {
			return err
		}
		if err := buf.Add(entry); err != nil {
			// Too large for an empty buffer.
			return p.reject(ctx, pid, consumed.Raw, md, consumed.CommitFunc, ReasonOversized, err)
		}
	}

	p.metrics.IncRecordsProcessed(md.Topic, md.Partition, "success")

	stats := buf.Stats()
	p.metrics.SetBufferStats(md.Topic, md.Partition, stats.SizeBytes, stats.RecordCount)
	if p.deps.Policy.ShouldRotate(stats) {
		return p.flush(ctx, pid)
	}
	return nil
}

// reject dead letters a record. Its offset is committed at once when
// nothing is buffered for the partition, otherwise with the next flush.
func (p *Processor) reject(
	ctx context.Context,
	pid record.PartitionID,
	raw []byte,
	md record.KafkaMetadata,
	commit func() error,
	reason string,
	cause error,
) error {
	p.metrics.IncRecordsProcessed(md.Topic, md.Partition, "failed")
	p.metrics.IncRecordsFailed(md.Topic, errors.Kind(cause))

	if err := p.deps.DLQ.Publish(ctx, raw, md, reason, cause); err != nil {
		return &errors.ProcessingError{
			PartitionID: pid,
			Offset:      md.Offset,
			Err:         fmt.Errorf("dead letter failed: %w", err),
		}
	}
	p.metrics.IncDLQPublished(md.Topic, reason)

	if commit == nil {
		return nil
	}
	if p.deps.Buffers.GetOrCreate(pid).IsEmpty() {
		p.commit(pid, md.Offset, commit)
		return nil
	}
	p.pending[pid] = pendingCommit{offset: md.Offset, commit: commit}
	return nil
}

// FlushAll writes every non-empty buffer and releases held commits.
func (p *Processor) FlushAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	for _, pid := range p.deps.Buffers.Partitions() {
		errs = multierr.Append(errs, p.flush(ctx, pid))
	}
	return errs
}

// FlushDue writes the buffers whose rotation policy is met. Time based
// rotation only fires here, since no record arrives to trigger it.
func (p *Processor) FlushDue(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	for _, pid := range p.deps.Buffers.Partitions() {
		buf := p.deps.Buffers.GetOrCreate(pid)
		if buf.IsEmpty() || !p.deps.Policy.ShouldRotate(buf.Stats()) {
			continue
		}
		errs = multierr.Append(errs, p.flush(ctx, pid))
	}
	return errs
}

// flush writes the partition buffer as one file and commits the highest
// offset in it. Callers hold p.mu.
func (p *Processor) flush(ctx context.Context, pid record.PartitionID) error {
	buf := p.deps.Buffers.GetOrCreate(pid)
	entries := buf.Drain()
	p.metrics.SetBufferStats(pid.Topic, pid.Partition, 0, 0)

	if len(entries) == 0 {
		p.releasePending(pid, -1)
		return nil
	}

	batch := record.Batch{
		Partition: pid,
		Records:   make([]record.Record, len(entries)),
		EventTime: entries[0].EventTime,
	}
	for i, e := range entries {
		batch.Records[i] = e.Record
	}
	path := p.deps.Router.Route(pid, batch.EventTime)

	start := time.Now()
	written, err := p.deps.Writer.Write(ctx, batch, path)
	p.metrics.ObserveProcessingDuration(pid.Topic, "write", time.Since(start).Seconds())

	if err != nil {
		p.logger.Error("failed to write batch to storage",
			"topic", pid.Topic,
			"partition", pid.Partition,
			"records", len(entries),
			"path", path,
			"error", err,
		)
		if errors.IsRetryable(err) || ctx.Err() != nil {
			// Nothing is committed; the records are consumed again.
			return &errors.ProcessingError{PartitionID: pid, Offset: entries[0].Kafka.Offset, Err: err}
		}
		return p.deadLetterBatch(ctx, pid, entries, err)
	}

	p.lastFlush = time.Now()
	p.logger.Info("wrote batch to storage",
		"topic", pid.Topic,
		"partition", pid.Partition,
		"records", len(entries),
		"bytes", written,
		"path", path,
	)

	last := entries[len(entries)-1]
	if last.CommitFunc != nil {
		p.commit(pid, last.Kafka.Offset, last.CommitFunc)
	}
	p.releasePending(pid, last.Kafka.Offset)
	return nil
}

// deadLetterBatch sends every entry of a batch that can never be stored to
// the dead letter topic, then commits past it.
func (p *Processor) deadLetterBatch(ctx context.Context, pid record.PartitionID, entries []record.Entry, cause error) error {
	for _, e := range entries {
		if err := p.deps.DLQ.Publish(ctx, e.Raw, e.Kafka, ReasonStorage, cause); err != nil {
			return &errors.ProcessingError{
				PartitionID: pid,
				Offset:      e.Kafka.Offset,
				Err:         multierr.Combine(cause, fmt.Errorf("dead letter failed: %w", err)),
			}
		}
		p.metrics.IncRecordsFailed(pid.Topic, errors.Kind(cause))
		p.metrics.IncDLQPublished(pid.Topic, ReasonStorage)
	}

	last := entries[len(entries)-1]
	if last.CommitFunc != nil {
		p.commit(pid, last.Kafka.Offset, last.CommitFunc)
	}
	p.releasePending(pid, last.Kafka.Offset)
	return nil
}

// releasePending commits a held rejected record newer than committed.
func (p *Processor) releasePending(pid record.PartitionID, committed int64) {
	pc, ok := p.pending[pid]
	if !ok {
		return
	}
	delete(p.pending, pid)
	if pc.offset > committed {
		p.commit(pid, pc.offset, pc.commit)
	}
}

func (p *Processor) commit(pid record.PartitionID, offset int64, commit func() error) {
	start := time.Now()
	err := commit()
	p.metrics.ObserveCommitLatency(pid.Topic, pid.Partition, time.Since(start).Seconds())

	if err != nil {
		p.metrics.IncOffsetCommits(pid.Topic, pid.Partition, "failed")
		p.logger.Error("failed to commit offset",
			"error", &errors.CommitError{PartitionID: pid, Offset: offset, Err: err},
		)
		return
	}
	p.metrics.IncOffsetCommits(pid.Topic, pid.Partition, "success")
}

// Check reports whether the processor is running without a fatal error.
func (p *Processor) Check(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fatal != nil {
		return p.fatal
	}
	if !p.running {
		return stderrors.New("processor is not running")
	}
	return nil
}

// LastFlush returns when a batch was last stored.
func (p *Processor) LastFlush() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFlush
}
