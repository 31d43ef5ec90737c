package siser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// data blocks up to this size are read into a re-used buffer
const maxReusedData = 1024 * 1024

// Reader is for reading (deserializing) blocks from a bufio.Reader
type Reader struct {
	r *bufio.Reader

	// Record is available after ReadNextRecord().
	// It's over-written in next ReadNextRecord().
	Record *ReadRecord

	// Data and Name are available after ReadNextData.
	// They are over-written in next ReadNextData.
	Data []byte
	Name string

	// position of the current block within the reader
	CurrRecordPos int64
	// position of the next block within the reader
	NextRecordPos int64

	err error

	// true if reached end of input with io.EOF on a block boundary
	done bool
}

// NewReader creates a new reader
func NewReader(r *bufio.Reader) *Reader {
	return &Reader{
		r:      r,
		Record: &ReadRecord{},
	}
}

// Done returns true if we're finished reading from the reader
func (r *Reader) Done() bool {
	return r.err != nil || r.done
}

// ReadNextData reads next block from the reader, returns false
// when no more blocks. If returns false, check Err() to see
// if there were errors.
func (r *Reader) ReadNextData() bool {
	if r.Done() {
		return false
	}
	r.Name = ""
	r.CurrRecordPos = r.NextRecordPos

	// read header in the format:
	// "--- ${size} ${name}\n"
	// ${name} is optional
	hdr, err := r.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(hdr) == 0 {
			r.done = true
		} else if err == io.EOF {
			r.err = fmt.Errorf("truncated header '%s': %w", string(hdr), io.ErrUnexpectedEOF)
		} else {
			r.err = err
		}
		return false
	}
	hdrSize := len(hdr)

	if !bytes.HasPrefix(hdr, hdrPrefix) {
		r.err = fmt.Errorf("unexpected header '%s'", string(hdr))
		return false
	}
	rest := hdr[len(hdrPrefix) : len(hdr)-1]
	dataSize := rest
	var name []byte
	if idx := bytes.IndexByte(rest, ' '); idx != -1 {
		dataSize = rest[:idx]
		name = rest[idx+1:]
	}

	size, err := strconv.ParseInt(string(dataSize), 10, 64)
	if err != nil || size < 0 {
		r.err = fmt.Errorf("unexpected header '%s'", string(hdr))
		return false
	}
	r.Name = string(name)

	// we try to re-use r.Data as long as it doesn't grow too much
	// (limit to 1 MB)
	if cap(r.Data) > maxReusedData {
		r.Data = nil
	}
	var n int
	if size <= maxReusedData {
		if size > int64(cap(r.Data)) {
			r.Data = make([]byte, size)
		} else {
			r.Data = r.Data[:size]
		}
		n, err = io.ReadFull(r.r, r.Data)
	} else {
		// size comes from untrusted input so we don't allocate it
		// upfront. the buffer grows as the data is read
		var buf bytes.Buffer
		var nRead int64
		nRead, err = io.CopyN(&buf, r.r, size)
		r.Data = buf.Bytes()
		n = int(nRead)
	}
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = fmt.Errorf("reading %d bytes of data: %w", size, err)
		return false
	}

	// account for the fact that for readability we might
	// have padded data with '\n'
	if !emptyOrEndsWithNewline(string(r.Data)) {
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.err = fmt.Errorf("reading newline after data: %w", err)
			return false
		}
		if b != '\n' {
			r.err = fmt.Errorf("expected '\\n' after data, got 0x%x", b)
			return false
		}
		n++
	}
	r.NextRecordPos += int64(hdrSize + n)
	return true
}

// ReadNextRecord reads a key / value record.
// Returns false if there are no more records.
// Check Err() for errors.
func (r *Reader) ReadNextRecord() bool {
	if !r.ReadNextData() {
		return false
	}
	_, r.err = UnmarshalRecord(r.Data, r.Record)
	return r.err == nil
}

// Err returns error from last Read. We swallow io.EOF to make it easier
// to use
func (r *Reader) Err() error {
	return r.err
}
