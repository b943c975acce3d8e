// Package encoder writes normalized records to files whose layout is derived
// from the record schema.
//
// # Supported Formats
//
//   - Parquet: one column per schema field, typed by the field's first
//     supported non-null type and optional when the field declares null
//   - Avro: Object Container Files using the schema's Avro rendering, every
//     field written as a union of its declared types
//   - JSON: newline-delimited objects, optionally gzip compressed
//
// # Row Writers
//
// Row writers stream records one at a time and reject a record that does not
// fit the schema with an *errors.SchemaMismatchError, leaving the writer
// usable for the next record:
//
//	w, err := encoder.NewAvroRowWriter(out, s, "deflate")
//	if err != nil {
//	    return err
//	}
//	for _, rec := range records {
//	    if err := w.Write(rec); err != nil {
//	        log.Printf("skipping record: %v", err)
//	    }
//	}
//	return w.Close()
//
// # Encoder Factory
//
// Use Factory to create file encoders for the storage writers:
//
//	factory := encoder.NewFactory(record.FormatParquet, "snappy", s, encoder.ParquetOptions{})
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := enc.Encode(filePath, records)
//
// # Compression Options
//
//	Parquet: "snappy", "gzip", "lz4", "zstd", "none"
//	Avro:    "deflate" (also "gzip"), "snappy", "none"
//	JSON:    "gzip", "none"
//
// Avro compression applies to container blocks, so the file extension stays
// ".avro". Compressed JSON files end in ".ndjson.gz".
//
// # Thread Safety
//
// Encoders are safe for concurrent use. Row writers are not.
package encoder
