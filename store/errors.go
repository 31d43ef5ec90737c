package store

import (
	"errors"
	"fmt"
)

// ErrCorrupt is wrapped by errors returned from Load when a batch file
// exists but can't be decoded
var ErrCorrupt = errors.New("corrupted batch file")

// Error is returned for all failures at the file system boundary
type Error struct {
	Op   string
	Key  string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s of key '%s' at '%s' failed: %s", e.Op, e.Key, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCorrupt returns true if err is a result of decoding a corrupted batch file
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}

func newError(op, key, path string, err error) *Error {
	return &Error{Op: op, Key: key, Path: path, Err: err}
}

func corruptError(key, path string, err error) *Error {
	return newError("load", key, path, fmt.Errorf("%w: %w", ErrCorrupt, err))
}
