// Command recordctl normalizes newline delimited JSON records offline with
// the same schema, transforms and encoders the service uses.
//
//	recordctl -schema pages.avsc -format parquet -out pages.parquet < pages.ndjson
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"

	"github.com/jittakal/kafrecordstore/internal/encoder"
	"github.com/jittakal/kafrecordstore/internal/kafka"
	"github.com/jittakal/kafrecordstore/internal/observability"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/internal/transform"
	"github.com/jittakal/kafrecordstore/internal/validator"
	pkgencoder "github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

const maxLineBytes = 16 * 1024 * 1024

type options struct {
	schemaPath  string
	in          string
	out         string
	format      string
	compression string
	envelope    string
	strict      bool
	logLevel    string
}

// stats counts what a run did.
type stats struct {
	read     int
	written  int
	rejected int
}

func main() {
	var opts options
	flag.StringVar(&opts.schemaPath, "schema", "", "schema file (.avsc, .json, .yaml)")
	flag.StringVar(&opts.in, "in", "-", "input file of one JSON record per line, - for stdin")
	flag.StringVar(&opts.out, "out", "-", "output file, - for stdout")
	flag.StringVar(&opts.format, "format", "json", "output format: json, avro or parquet")
	flag.StringVar(&opts.compression, "compression", "", "output compression, empty for the format default")
	flag.StringVar(&opts.envelope, "envelope", "json", "record envelope: json or cloudevents")
	flag.BoolVar(&opts.strict, "strict", false, "stop at the first record that cannot be normalized")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flag.Parse()

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  opts.logLevel,
		Format: "text",
		Output: "stderr",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := run(ctx, opts, logger)
	logger.Info("done", "read", st.read, "written", st.written, "rejected", st.rejected)
	if err != nil {
		logger.Error("recordctl failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) (st stats, err error) {
	if opts.schemaPath == "" {
		return st, errors.New("-schema is required")
	}
	s, err := schema.LoadFile(opts.schemaPath)
	if err != nil {
		return st, err
	}
	if err := validator.NewSchemaValidator().Validate(s); err != nil {
		return st, fmt.Errorf("invalid schema: %w", err)
	}
	t, err := transform.New(s)
	if err != nil {
		return st, err
	}
	envelope, err := kafka.ParseEnvelope(opts.envelope)
	if err != nil {
		return st, err
	}

	format := record.FileFormat(opts.format)
	compression := opts.compression
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	}

	in, closeIn, err := openInput(opts.in)
	if err != nil {
		return st, err
	}
	defer closeIn()

	out, closeOut, err := openOutput(opts.out)
	if err != nil {
		return st, err
	}
	defer func() { err = multierr.Append(err, closeOut()) }()

	rows, err := encoder.NewFactory(format, compression, t.Schema(), encoder.ParquetOptions{
		CreatedBy: "recordctl",
	}).NewRowWriter(out)
	if err != nil {
		return st, err
	}
	defer func() { err = multierr.Append(err, rows.Close()) }()

	err = normalize(ctx, in, kafka.Decoder{Envelope: envelope}, t, rows, opts.strict, logger, &st)
	return st, err
}

// normalize decodes each line of in, normalizes it with t and writes it to
// rows. Blank lines are skipped.
func normalize(
	ctx context.Context,
	in io.Reader,
	decoder kafka.Decoder,
	t *transform.Transformer,
	rows pkgencoder.RowWriter,
	strict bool,
	logger *slog.Logger,
	st *stats,
) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		st.read++

		rec, err := decoder.Decode(raw)
		if err == nil {
			rec, err = t.Apply(rec)
		}
		if err == nil {
			err = rows.Write(rec)
		}
		if err != nil {
			st.rejected++
			if strict {
				return fmt.Errorf("line %d: %w", line, err)
			}
			logger.Warn("record rejected", "line", line, "error", err)
			continue
		}
		st.written++
	}
	return scanner.Err()
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" || path == "" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w := bufio.NewWriter(f)
	return w, func() error {
		return multierr.Append(w.Flush(), f.Close())
	}, nil
}
