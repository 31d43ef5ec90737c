package siser

import (
	"io"
	"strconv"
	"sync"
)

var hdrPrefix = []byte("--- ")

// Writer writes length-prefixed blocks of data
type Writer struct {
	w io.Writer

	buf []byte
	mu  sync.Mutex
}

// NewWriter creates a writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: w,
	}
}

// WriteRecord writes a key/value record as a block and resets it
func (w *Writer) WriteRecord(r *Record, name string) (int, error) {
	n, err := w.Write(r.Marshal(), name)
	r.Reset()
	return n, err
}

// Write writes a block of data with optional name.
// Returns number of bytes written (length of d + length of header)
func (w *Writer) Write(d []byte, name string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// most writes should be small. if buffer gets big, don't keep it
	// around (unbounded cache is a mem leak)
	if cap(w.buf) > 100*1024 && len(d) < 50*1024 {
		w.buf = nil
	}
	w.buf = AppendFrame(w.buf[:0], name, d)
	return w.w.Write(w.buf)
}

// AppendFrame appends a block to dst in the format:
// "--- ${size} ${name}\n${data}\n"
// name is optional. Newline after data is only written if data
// doesn't already end with one
func AppendFrame(dst []byte, name string, d []byte) []byte {
	dst = append(dst, hdrPrefix...)
	dst = strconv.AppendInt(dst, int64(len(d)), 10)
	if name != "" {
		dst = append(dst, ' ')
		dst = append(dst, name...)
	}
	dst = append(dst, '\n')
	// for readability, if the data doesn't end with newline,
	// we add one at the end
	dst = append(dst, d...)
	if !emptyOrEndsWithNewline(string(d)) {
		dst = append(dst, '\n')
	}
	return dst
}
