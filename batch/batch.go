// Package batch serializes an ordered list of records to bytes and back.
//
// The stream is a sequence of siser frames. The first frame, named "batch",
// is a key/value record with the number of records that follow. Each record
// is then written as its own frame:
//
//	--- 9 batch
//	count: 2
//	--- 17 issue
//	path: src/a.go
//	...
//
// The count makes truncation at a frame boundary detectable.
// Optionally the whole stream is compressed with zstd. Decode sniffs the zstd
// magic number so compressed and plain streams can be mixed.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kjk/shardstore/siser"
	"github.com/kjk/shardstore/u"
)

const headerName = "batch"

// ErrMalformed is returned (wrapped) by Decode for data that can't be decoded
var ErrMalformed = errors.New("malformed batch")

// RecordCodec converts a single record to bytes and back.
// Data passed to UnmarshalRecord is only valid for the duration of the call.
type RecordCodec[T any] interface {
	MarshalRecord(T) ([]byte, error)
	UnmarshalRecord([]byte) (T, error)
}

// JSON is a RecordCodec that uses encoding/json
type JSON[T any] struct{}

func (JSON[T]) MarshalRecord(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) UnmarshalRecord(d []byte) (T, error) {
	var v T
	err := json.Unmarshal(d, &v)
	return v, err
}

// Codec encodes / decodes a batch of records
type Codec[T any] struct {
	Records RecordCodec[T]
	// Name of record frames, for readability. Optional.
	Name string
	// Compress compresses encoded data with zstd
	Compress bool
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Encode serializes records. Zero records produce a valid stream.
func (c *Codec[T]) Encode(records []T) ([]byte, error) {
	var buf bytes.Buffer
	w := siser.NewWriter(&buf)

	var hdr siser.Record
	if err := hdr.Write("count", len(records)); err != nil {
		return nil, err
	}
	if _, err := w.WriteRecord(&hdr, headerName); err != nil {
		return nil, err
	}
	for i, rec := range records {
		d, err := c.Records.MarshalRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal of record %d failed: %w", i, err)
		}
		if _, err = w.Write(d, c.Name); err != nil {
			return nil, err
		}
	}
	if !c.Compress {
		return buf.Bytes(), nil
	}
	return u.ZstdCompressData(buf.Bytes())
}

// Decode deserializes data created with Encode. Empty data decodes
// to zero records.
func (c *Codec[T]) Decode(d []byte) ([]T, error) {
	if len(d) == 0 {
		return []T{}, nil
	}
	if u.IsZstd(d) {
		var err error
		d, err = u.ZstdDecompressData(d)
		if err != nil {
			return nil, malformedf("zstd: %s", err)
		}
	}

	r := siser.NewReader(bufio.NewReader(bytes.NewReader(d)))
	if !r.ReadNextRecord() {
		if err := r.Err(); err != nil {
			return nil, malformedf("header: %s", err)
		}
		return nil, malformedf("missing header")
	}
	if r.Name != headerName {
		return nil, malformedf("expected '%s' header, got '%s'", headerName, r.Name)
	}
	countStr, ok := r.Record.Get("count")
	if !ok {
		return nil, malformedf("header without count")
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return nil, malformedf("invalid count '%s'", countStr)
	}

	// don't trust count for pre-allocation, a frame is at least 6 bytes
	res := make([]T, 0, min(count, len(d)/6))
	for r.ReadNextData() {
		if len(res) == count {
			return nil, malformedf("more than %d records", count)
		}
		rec, err := c.Records.UnmarshalRecord(r.Data)
		if err != nil {
			return nil, malformedf("record %d: %s", len(res), err)
		}
		res = append(res, rec)
	}
	if err := r.Err(); err != nil {
		return nil, malformedf("record %d: %s", len(res), err)
	}
	if len(res) != count {
		return nil, malformedf("expected %d records, got %d", count, len(res))
	}
	return res, nil
}
