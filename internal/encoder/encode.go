package encoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"

	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

type openFunc func(w io.Writer) (encoder.RowWriter, error)

func writeAll(rw encoder.RowWriter, records []record.Record) error {
	for i, rec := range records {
		if err := rw.Write(rec); err != nil {
			return multierr.Append(fmt.Errorf("record %d: %w", i, err), rw.Close())
		}
	}
	return rw.Close()
}

// encodeFile writes records to filePath. The file is removed when encoding fails.
func encodeFile(filePath string, records []record.Record, open openFunc) (stats *record.FileStats, err error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	startTime := time.Now()

	// Create output file
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				err = multierr.Append(err, file.Close())
			}
			err = multierr.Append(err, os.Remove(filePath))
		}
	}()

	rw, err := open(file)
	if err != nil {
		return nil, err
	}
	if err = writeAll(rw, records); err != nil {
		return nil, err
	}

	// Close file before getting stats to ensure all data is flushed
	closed = true
	if err = file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &record.FileStats{
		RecordCount:    len(records),
		SizeBytes:      fileInfo.Size(),
		FirstWriteTime: startTime,
		LastWriteTime:  time.Now(),
	}, nil
}

// EncodeToBytes encodes records in memory.
func EncodeToBytes(f encoder.RowWriterFactory, records []record.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	rw, err := f.NewRowWriter(&buf)
	if err != nil {
		return nil, err
	}
	if err := writeAll(rw, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
