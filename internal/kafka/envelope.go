package kafka

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	cloudevent "github.com/cloudevents/sdk-go/v2/event"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Envelope names how a Kafka message value wraps the record.
type Envelope string

const (
	// EnvelopeJSON is a bare JSON object.
	EnvelopeJSON Envelope = "json"
	// EnvelopeCloudEvents is a structured-mode CloudEvent whose data is a JSON object.
	EnvelopeCloudEvents Envelope = "cloudevents"
)

// ParseEnvelope validates an envelope name. Empty means EnvelopeJSON.
func ParseEnvelope(name string) (Envelope, error) {
	switch Envelope(name) {
	case "", EnvelopeJSON:
		return EnvelopeJSON, nil
	case EnvelopeCloudEvents:
		return EnvelopeCloudEvents, nil
	default:
		return "", fmt.Errorf("unsupported envelope: %s", name)
	}
}

// Attribute fields added to CloudEvents records when requested.
const (
	AttrID     = "ce_id"
	AttrSource = "ce_source"
	AttrType   = "ce_type"
	AttrTime   = "ce_time"
)

// Decoder turns message values into records.
type Decoder struct {
	Envelope Envelope
	// IncludeAttributes copies CloudEvent id, source, type and time into the
	// record under the ce_ fields unless the payload already has them.
	IncludeAttributes bool
}

// DecodeRecord decodes value with a default Decoder for envelope.
func DecodeRecord(value []byte, envelope Envelope) (record.Record, error) {
	return Decoder{Envelope: envelope}.Decode(value)
}

// Decode returns the record carried by value. Numbers are kept as
// json.Number. Failures match errors.ErrInvalidRecord.
func (d Decoder) Decode(value []byte) (record.Record, error) {
	switch d.Envelope {
	case "", EnvelopeJSON:
		return decodeObject(value)
	case EnvelopeCloudEvents:
		return d.decodeCloudEvent(value)
	default:
		return nil, fmt.Errorf("unsupported envelope: %s", d.Envelope)
	}
}

func (d Decoder) decodeCloudEvent(value []byte) (record.Record, error) {
	e := cloudevent.New()
	if err := json.Unmarshal(value, &e); err != nil {
		return nil, fmt.Errorf("%w: cloud event: %v", errors.ErrInvalidRecord, err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: cloud event: %v", errors.ErrInvalidRecord, err)
	}

	rec, err := decodeObject(e.Data())
	if err != nil {
		return nil, fmt.Errorf("cloud event %s: %w", e.ID(), err)
	}

	if d.IncludeAttributes {
		setAbsent(rec, AttrID, e.ID())
		setAbsent(rec, AttrSource, e.Source())
		setAbsent(rec, AttrType, e.Type())
		if !e.Time().IsZero() {
			setAbsent(rec, AttrTime, e.Time().UTC().Format(time.RFC3339Nano))
		}
	}
	return rec, nil
}

func setAbsent(rec record.Record, key string, v any) {
	if _, ok := rec[key]; !ok {
		rec[key] = v
	}
}

func decodeObject(data []byte) (record.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", errors.ErrInvalidRecord)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec record.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidRecord, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", errors.ErrInvalidRecord)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", errors.ErrInvalidRecord)
	}
	return rec, nil
}
