// Package consumer defines interfaces for Kafka record consumption.
//
// This package provides abstractions for consuming raw records from Kafka
// and managing consumer lifecycle.
package consumer

import (
	"context"

	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Consumer reads records from Kafka topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for records and errors.
	Consume(ctx context.Context) (<-chan *record.ConsumedRecord, <-chan error, error)

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes records that could not be normalized or stored to a dead letter queue.
type DLQPublisher interface {
	// Publish sends the raw message to the DLQ with failure information.
	Publish(ctx context.Context, raw []byte, metadata record.KafkaMetadata, reason string, cause error) error

	// Close closes the publisher and releases resources.
	Close() error
}
