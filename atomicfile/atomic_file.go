package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Some references:
// - https://www.slideshare.net/nan1nan1/eat-my-data
// - https://lwn.net/Articles/457667/

const DefaultPerm os.FileMode = 0644

var (
	// ErrCancelled is returned by calls subsequent to Cancel()
	ErrCancelled = errors.New("cancelled")

	_ io.WriteCloser = &File{}
)

// File allows writing to a file atomically
// i.e. if the whole file is not written successfully, we make sure
// to clean things up and the destination is left untouched
type File struct {
	dstPath string
	dir     string
	perm    os.FileMode
	tmpFile *os.File
	err     error
	// NoSync skips fsync of the file and the directory on Close
	NoSync bool

	tmpPath string // for debugging
}

// New creates new File that will be renamed to path with DefaultPerm
// permissions on Close
func New(path string) (*File, error) {
	return NewWithPerm(path, DefaultPerm)
}

// NewWithPerm is like New but sets permissions of the destination file
func NewWithPerm(path string, perm os.FileMode) (*File, error) {
	dir, fName := filepath.Split(path)
	if fName == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	// temp file lives in the same directory so that rename
	// doesn't cross file systems
	tmpFile, err := os.CreateTemp(dir, fName+".tmp")
	if err != nil {
		return nil, err
	}

	return &File{
		dstPath: path,
		dir:     dir,
		perm:    perm,
		tmpFile: tmpFile,
		tmpPath: tmpFile.Name(),
	}, nil
}

// WriteFile writes d to path atomically
func WriteFile(path string, d []byte, perm os.FileMode, noSync bool) error {
	f, err := NewWithPerm(path, perm)
	if err != nil {
		return err
	}
	f.NoSync = noSync
	// calling Close() twice is a no-op
	defer f.Close()

	_, err = f.Write(d)
	if err != nil {
		return err
	}
	return f.Close()
}

func (f *File) handleError(err error) error {
	if err == nil {
		return nil
	}
	// remember the first error
	if f.err == nil {
		f.err = err
	}
	// cleanup i.e. delete temporary file
	_ = f.Close()
	return err
}

// Write writes data to a file
func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmpFile.Write(d)
	return n, f.handleError(err)
}

func (f *File) WriteString(s string) (n int, err error) {
	return f.Write([]byte(s))
}

func (f *File) alreadyClosed() bool {
	return f.tmpFile == nil
}

// RemoveIfNotClosed removes the temp file if we didn't Close
// the file yet. Destination file will not be created.
// Use it with defer to ensure cleanup in case of a panic on the
// same goroutine that happens before Close.
// RemoveIfNotClosed after Close is a no-op.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.alreadyClosed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close closes the file and renames it to destination path.
// Can be called multiple times to make it easier to use via defer
func (f *File) Close() error {
	if f.alreadyClosed() {
		// return the first error we encountered
		return f.err
	}
	tmpFile := f.tmpFile
	f.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	var errSync error
	if !f.NoSync && f.err == nil {
		errSync = tmpFile.Sync()
	}
	errClose := tmpFile.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(f.tmpPath)
		}
	}()

	// if there was an error during write, return that error
	if f.err != nil {
		return f.err
	}

	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		// CreateTemp creates files with 0600
		err = os.Chmod(f.tmpPath, f.perm)
	}
	if err == nil {
		// over-writes dstPath if it's a file, fails if it's a directory
		err = os.Rename(f.tmpPath, f.dstPath)
		didRename = (err == nil)
		if didRename && !f.NoSync {
			syncDir(f.dir)
		}
	}

	f.err = err
	return f.err
}

// for extra protection against crashes, sync directory after rename.
// errors are ignored as this is a nice to have
func syncDir(dir string) {
	fdir, _ := os.Open(dir)
	if fdir != nil {
		_ = fdir.Sync()
		_ = fdir.Close()
	}
}
