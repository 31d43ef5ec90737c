package siser

import (
	"bytes"
	"fmt"
	"strconv"
)

/*
Serialize/Deserialize array of key/value pairs in a format that is easy
to serialize/parse and human-readable.

The basic format is line-oriented: "key: value\n"

When value is long (> 120 chars), empty or has non-printable characters
(including \n) we serialize it as:
key:+$len\n
value\n
*/

type Entry struct {
	Key   string
	Value string
}

// Record is a list of key/value pairs that can be serialized
type Record struct {
	buf bytes.Buffer
}

// ReadRecord is a record decoded with UnmarshalRecord
type ReadRecord struct {
	Entries []Entry
}

// perf: re-use buf
func toStr(v any, buf *[]byte) string {
	if s, ok := v.(string); ok {
		return s
	}
	*buf = (*buf)[:0]
	switch n := v.(type) {
	case int:
		*buf = strconv.AppendInt(*buf, int64(n), 10)
	case int64:
		*buf = strconv.AppendInt(*buf, n, 10)
	case bool:
		*buf = strconv.AppendBool(*buf, n)
	default:
		*buf = fmt.Appendf(*buf, "%v", v)
	}
	return string(*buf)
}

// Write writes key/value pairs to a record.
// After you write all key/value pairs, call Marshal()
// to get serialized value (valid until next call to Reset())
func (r *Record) Write(args ...any) error {
	n := len(args)
	if n == 0 || n%2 != 0 {
		return fmt.Errorf("invalid number of args: %d. Should be multiple of 2", len(args))
	}

	var buf []byte
	for i := 0; i < n; i += 2 {
		k := toStr(args[i], &buf)
		if err := validateKey(k); err != nil {
			return err
		}
		v := toStr(args[i+1], &buf)
		r.marshalKeyVal(k, v)
	}
	return nil
}

// WriteNonEmpty is like Write but skips pairs with empty values
func (r *Record) WriteNonEmpty(args ...string) error {
	n := len(args)
	if n == 0 || n%2 != 0 {
		return fmt.Errorf("invalid number of args: %d. Should be multiple of 2", len(args))
	}
	for i := 0; i < n; i += 2 {
		k := args[i]
		if err := validateKey(k); err != nil {
			return err
		}
		v := args[i+1]
		if len(v) == 0 {
			continue
		}
		r.marshalKeyVal(k, v)
	}
	return nil
}

// keys are written verbatim up to ':' so they can't contain ':' or '\n'
func validateKey(k string) error {
	if len(k) == 0 {
		return fmt.Errorf("empty key")
	}
	if bytes.ContainsAny([]byte(k), ":\n") {
		return fmt.Errorf("key '%s' contains ':' or newline", k)
	}
	return nil
}

// Reset to re-use the record when writing for efficiency
func (r *Record) Reset() {
	r.buf.Reset()
}

// Get returns a value for a given key
func (r *ReadRecord) Get(key string) (string, bool) {
	for _, e := range r.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func (r *ReadRecord) Reset() {
	if r.Entries != nil {
		r.Entries = r.Entries[0:0]
	}
}

// return true if value needs to be serialized in long,
// size-prefixed format
func needsLongFormat(s string) bool {
	return len(s) == 0 || len(s) > 120 || !serializableOnLine(s)
}

func (r *Record) marshalKeyVal(key, val string) {
	r.buf.WriteString(key)

	if needsLongFormat(val) {
		r.buf.WriteString(":+")
		r.buf.WriteString(strconv.Itoa(len(val)))
		r.buf.WriteByte('\n')
		r.buf.WriteString(val)
		// for readability: ensure a newline at the end so
		// that next key always appears on new line
		if !emptyOrEndsWithNewline(val) {
			r.buf.WriteByte('\n')
		}
		return
	}
	r.buf.WriteString(": ")
	r.buf.WriteString(val)
	r.buf.WriteByte('\n')
}

// Marshal converts record to bytes
func (r *Record) Marshal() []byte {
	return r.buf.Bytes()
}

// UnmarshalRecord unmarshalls record as marshalled with Record.Marshal
// For efficiency re-uses record r. If r is nil, will allocate new record.
func UnmarshalRecord(d []byte, r *ReadRecord) (*ReadRecord, error) {
	if r == nil {
		r = &ReadRecord{}
	} else {
		r.Reset()
	}

	for len(d) > 0 {
		idx := bytes.IndexByte(d, '\n')
		if idx == -1 {
			return nil, fmt.Errorf("missing '\\n' marking end of line in '%s'", string(d))
		}
		line := d[:idx]
		d = d[idx+1:]
		idx = bytes.IndexByte(line, ':')
		if idx == -1 {
			return nil, fmt.Errorf("line in unrecognized format: '%s'", line)
		}
		key := string(line[:idx])
		val := line[idx+1:]
		// at this point val must be at least one character (' ' or '+')
		if len(val) < 1 {
			return nil, fmt.Errorf("line in unrecognized format: '%s'", line)
		}
		kind := val[0]
		val = val[1:]
		if kind == ' ' {
			r.Entries = append(r.Entries, Entry{Key: key, Value: string(val)})
			continue
		}
		if kind != '+' {
			return nil, fmt.Errorf("line in unrecognized format: '%s'", line)
		}

		n, err := strconv.Atoi(string(val))
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative length %d of data", n)
		}
		if n > len(d) {
			return nil, fmt.Errorf("length of value %d greater than remaining data of size %d", n, len(d))
		}
		val = d[:n]
		d = d[n:]
		// encoder might put optional newline
		if !emptyOrEndsWithNewline(string(val)) {
			if len(d) == 0 || d[0] != '\n' {
				return nil, fmt.Errorf("missing '\\n' after value of key '%s'", key)
			}
			d = d[1:]
		}
		r.Entries = append(r.Entries, Entry{Key: key, Value: string(val)})
	}
	return r, nil
}
