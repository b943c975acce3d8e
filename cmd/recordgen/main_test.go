package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jittakal/kafrecordstore/internal/generator"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

type mockProducer struct {
	records []record.Record
	topics  []string
	err     error
}

func (m *mockProducer) Produce(ctx context.Context, topic, key string, rec record.Record) (int32, int64, error) {
	if m.err != nil {
		return 0, 0, m.err
	}
	m.records = append(m.records, rec)
	m.topics = append(m.topics, topic)
	return 0, int64(len(m.records) - 1), nil
}

func newGenerator(t *testing.T, invalidRatio float64) *generator.Generator {
	t.Helper()
	s, err := schema.LoadFile("../../internal/schema/testdata/pages.avsc")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	config := generator.DefaultConfig()
	config.InvalidRatio = invalidRatio
	gen, err := generator.New(s, config)
	if err != nil {
		t.Fatalf("generator.New() error = %v", err)
	}
	return gen
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProduce_Count(t *testing.T) {
	producer := &mockProducer{}

	st := produce(context.Background(), producer, newGenerator(t, 0), "pages", 5, time.Millisecond, discardLogger())

	if st.produced != 5 || st.failed != 0 || st.invalid != 0 {
		t.Errorf("stats = %+v, want 5 produced", st)
	}
	if len(producer.records) != 5 {
		t.Fatalf("records = %d, want 5", len(producer.records))
	}
	for _, topic := range producer.topics {
		if topic != "pages" {
			t.Errorf("topic = %s, want pages", topic)
		}
	}
}

func TestProduce_InvalidRecords(t *testing.T) {
	st := produce(context.Background(), &mockProducer{}, newGenerator(t, 1), "pages", 3, time.Millisecond, discardLogger())

	if st.invalid != 3 {
		t.Errorf("invalid = %d, want 3", st.invalid)
	}
}

func TestProduce_Failures(t *testing.T) {
	producer := &mockProducer{err: errors.New("broker down")}

	st := produce(context.Background(), producer, newGenerator(t, 0), "pages", 2, time.Millisecond, discardLogger())

	if st.failed != 2 || st.produced != 0 {
		t.Errorf("stats = %+v, want 2 failed", st)
	}
}

func TestProduce_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := produce(ctx, &mockProducer{}, newGenerator(t, 0), "pages", 0, time.Hour, discardLogger())

	if st.produced != 0 {
		t.Errorf("produced = %d, want 0 after cancel", st.produced)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("RECORDGEN_TEST_VALUE", "set")

	if got := getEnv("RECORDGEN_TEST_VALUE", "default"); got != "set" {
		t.Errorf("getEnv() = %s, want set", got)
	}
	if got := getEnv("RECORDGEN_TEST_MISSING", "default"); got != "default" {
		t.Errorf("getEnv() = %s, want default", got)
	}
}
