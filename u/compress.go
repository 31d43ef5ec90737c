package u

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// zstd frames start with magic number 0xFD2FB528 (little endian)
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// IsZstd returns true if d looks like zstd-compressed data
func IsZstd(d []byte) bool {
	return bytes.HasPrefix(d, zstdMagic)
}

// implement io.ReadCloser over os.File wrapped with io.Reader.
// io.Closer goes to os.File (and the reader, if it's a closer),
// io.Reader goes to wrapping reader
type readerWrappedFile struct {
	f *os.File
	r io.Reader
}

func (rc *readerWrappedFile) Close() error {
	if c, ok := rc.r.(io.Closer); ok {
		_ = c.Close()
	}
	return rc.f.Close()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func wrapInReadCloser(f *os.File, r io.Reader, err error) (io.ReadCloser, error) {
	if err != nil {
		f.Close()
		return nil, err
	}
	return &readerWrappedFile{
		f: f,
		r: r,
	}, nil
}

func compressionExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// OpenFileMaybeCompressed opens a file that might be compressed with gzip,
// zstd or brotli, based on file extension
func OpenFileMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch compressionExt(path) {
	case ".gz":
		r, err := gzip.NewReader(f)
		return wrapInReadCloser(f, r, err)
	case ".zst", ".zstd":
		r, err := zstd.NewReader(f)
		if err != nil {
			return wrapInReadCloser(f, nil, err)
		}
		return wrapInReadCloser(f, r.IOReadCloser(), nil)
	case ".br":
		r := brotli.NewReader(f)
		return wrapInReadCloser(f, r, nil)
	}
	return f, nil
}

// ReadFileMaybeCompressed reads a file, decompressing based on extension
func ReadFileMaybeCompressed(path string) ([]byte, error) {
	r, err := OpenFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// implement io.WriteCloser over os.File wrapped with compressing writer.
// Close() flushes compressor and closes the file
type writerWrappedFile struct {
	f *os.File
	w io.WriteCloser
}

func (wc *writerWrappedFile) Write(p []byte) (int, error) {
	return wc.w.Write(p)
}

func (wc *writerWrappedFile) Close() error {
	err := wc.w.Close()
	err2 := wc.f.Close()
	return FirstErr(err, err2)
}

// CreateFileMaybeCompressed creates a file that compresses written data
// with gzip, zstd or brotli, based on file extension
func CreateFileMaybeCompressed(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	var w io.WriteCloser
	switch compressionExt(path) {
	case ".gz":
		w, err = gzip.NewWriterLevel(f, gzip.BestCompression)
	case ".zst", ".zstd":
		w, err = zstdNewWriter(f)
	case ".br":
		w = brotli.NewWriterLevel(f, brotli.DefaultCompression)
	default:
		return f, nil
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &writerWrappedFile{f: f, w: w}, nil
}

func BrCompressData(d []byte, level int) ([]byte, error) {
	var dst bytes.Buffer
	w := brotli.NewWriterLevel(&dst, level)
	_, err := w.Write(d)
	err2 := w.Close()
	if err = FirstErr(err, err2); err != nil {
		return nil, err
	}
	return dst.Bytes(), nil
}

func BrDecompressData(d []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(d))
	return io.ReadAll(r)
}

func zstdNewWriter(dst io.Writer) (*zstd.Encoder, error) {
	// in my tests:
	// - zstd.SpeedBestCompression is much slower and not much better
	// - default concurrency is GONUMPROCS() but adding concurrency of any value
	//   doesn't consistently speed things up
	return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
}

func ZstdCompressData(d []byte) ([]byte, error) {
	var dst bytes.Buffer
	w, err := zstdNewWriter(&dst)
	if err != nil {
		return nil, err
	}
	_, err = w.Write(d)
	err2 := w.Close()
	if err = FirstErr(err, err2); err != nil {
		return nil, err
	}
	return dst.Bytes(), nil
}

func ZstdDecompressData(d []byte) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(d), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
