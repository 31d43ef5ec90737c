package batch

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
)

type testRecord struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Msg  string `json:"msg,omitempty"`
}

func genRecords(n int) []testRecord {
	res := make([]testRecord, n)
	for i := range res {
		res[i] = testRecord{
			Path: fmt.Sprintf("src/file%d.go", i),
			Line: i * 11,
			Msg:  strings.Repeat("msg\n", i%5),
		}
	}
	return res
}

func newCodec(compress bool) *Codec[testRecord] {
	return &Codec[testRecord]{
		Records:  JSON[testRecord]{},
		Name:     "rec",
		Compress: compress,
	}
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		c := newCodec(compress)
		for _, n := range []int{0, 1, 2, 17, 500} {
			recs := genRecords(n)
			d, err := c.Encode(recs)
			assert.NoError(t, err)
			got, err := c.Decode(d)
			assert.NoError(t, err)
			assert.Equal(t, recs, got, "n: %d, compress: %v", n, compress)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	c := newCodec(false)
	d, err := c.Encode(nil)
	assert.NoError(t, err)
	assert.Equal(t, "--- 9 batch\ncount: 0\n", string(d))

	got, err := c.Decode(d)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, 0, len(got))

	got, err = c.Decode(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(got))
}

func TestEncodeFormat(t *testing.T) {
	c := newCodec(false)
	d, err := c.Encode([]testRecord{{Path: "a"}})
	assert.NoError(t, err)
	exp := "--- 9 batch\ncount: 1\n--- 12 rec\n{\"path\":\"a\"}\n"
	assert.Equal(t, exp, string(d))
}

func TestDecodeMixedCompression(t *testing.T) {
	recs := genRecords(3)
	d, err := newCodec(true).Encode(recs)
	assert.NoError(t, err)
	// a codec configured without compression still reads compressed data
	got, err := newCodec(false).Decode(d)
	assert.NoError(t, err)
	assert.Equal(t, recs, got)
}

func assertMalformed(t *testing.T, err error, msgAndArgs ...interface{}) {
	assert.Error(t, err, msgAndArgs...)
	assert.True(t, errors.Is(err, ErrMalformed), msgAndArgs...)
}

func TestDecodeTruncated(t *testing.T) {
	c := newCodec(false)
	d, err := c.Encode(genRecords(5))
	assert.NoError(t, err)
	// every proper prefix must fail, including those cut at a frame boundary
	for i := 1; i < len(d); i++ {
		_, err := c.Decode(d[:i])
		assertMalformed(t, err, "i: %d", i)
	}

	cz := newCodec(true)
	dz, err := cz.Encode(genRecords(50))
	assert.NoError(t, err)
	_, err = cz.Decode(dz[:len(dz)-3])
	assertMalformed(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	c := newCodec(false)
	invalid := []string{
		"garbage",
		"--- 3 rec\n{}\n",
		"--- 9 batch\ncount: x\n",
		"--- 10 batch\ncount: -1\n",
		"--- 7 batch\nfoo: 1\n",
		"--- 9 batch\ncount: 1\n--- 5 rec\nnope!\n",
		"--- 9 batch\ncount: 0\n--- 2 rec\n{}\n",
		"--- -1 \n",
		"--- 99999999999999999999 \n",
		"--- 9 other\ncount: 1\n--- 2 rec\n{}\n",
		"--- 9 batch\ncount: 3\n--- 2 rec\n{}\n",
		"--- 9 batch\ncount: 1\n--- 999999999999999999 \n{}\n",
		"--- 9 batch\ncount: 1\n--- 4000000000 rec\n{}\n",
	}
	for _, s := range invalid {
		_, err := c.Decode([]byte(s))
		assertMalformed(t, err, "s: '%s'", s)
	}
}

type failingCodec struct{}

func (failingCodec) MarshalRecord(int) ([]byte, error) {
	return nil, errors.New("can't marshal")
}

func (failingCodec) UnmarshalRecord([]byte) (int, error) {
	return 0, nil
}

func TestEncodeRecordError(t *testing.T) {
	c := &Codec[int]{Records: failingCodec{}}
	_, err := c.Encode([]int{1})
	assert.Error(t, err)

	// zero records never call the record codec
	d, err := c.Encode(nil)
	assert.NoError(t, err)
	got, err := c.Decode(d)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(got))
}
