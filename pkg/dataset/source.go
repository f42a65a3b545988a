package dataset

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/csv"
	"io"
	"os"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// Source yields rows of string cells. Rows calls fn once per row, in
// order, and stops at the first error fn returns.
type Source interface {
	Rows(ctx context.Context, fn func(row []string) error) error
}

// CSVSource reads rows from a CSV file at Path, or from Reader if set.
// A Reader can only be read once.
type CSVSource struct {
	Path   string
	Reader io.Reader
	// Comma defaults to ','.
	Comma rune
	// Header skips the first row.
	Header bool
}

var _ Source = &CSVSource{}

func (s *CSVSource) Rows(ctx context.Context, fn func(row []string) error) error {
	r := s.Reader
	if r == nil {
		file, err := os.Open(s.Path)
		if err != nil {
			return errors.Wrap(err, "opening csv source")
		}
		defer file.Close()
		r = file
	}
	return readCSV(ctx, r, s.Comma, s.Header, fn)
}

func readCSV(ctx context.Context, r io.Reader, comma rune, header bool, fn func([]string) error) error {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading csv")
		}
		if first && header {
			continue
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

// BoltSource reads rows from a bolt bucket, in key order. Each value is
// one CSV-encoded row, as written by PutRows.
type BoltSource struct {
	DB     *bolt.DB
	Bucket string
	Comma  rune
}

var _ Source = &BoltSource{}

type NoSuchBucketError struct {
	Bucket string
}

func (e *NoSuchBucketError) Error() string {
	return "no such bucket: " + e.Bucket
}

// Rows runs inside a single read transaction, which is released when Rows
// returns, whether or not fn failed.
func (s *BoltSource) Rows(ctx context.Context, fn func(row []string) error) error {
	return s.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(s.Bucket))
		if bucket == nil {
			return &NoSuchBucketError{Bucket: s.Bucket}
		}
		cursor := bucket.Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := decodeRow(value, s.Comma)
			if err != nil {
				return errors.Wrapf(err, "decoding row %x of %s", key, s.Bucket)
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutRows appends rows to bucket, creating it if needed. Keys are the
// bucket's sequence numbers, so cursor order is insertion order.
func PutRows(db *bolt.DB, bucket string, comma rune, rows [][]string) error {
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		for _, row := range rows {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			value, err := encodeRow(row, comma)
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := b.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrapf(err, "writing rows to %s", bucket)
}

func encodeRow(row []string, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if comma != 0 {
		writer.Comma = comma
	}
	if err := writer.Write(row); err != nil {
		return nil, err
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func decodeRow(value []byte, comma rune) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(value))
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1
	return reader.Read()
}
