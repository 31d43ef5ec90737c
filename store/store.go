package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kjk/shardstore/atomicfile"
	"github.com/kjk/shardstore/batch"
	"github.com/kjk/shardstore/shard"
)

// Options configures a Store. Zero value is a valid configuration.
type Options struct {
	// Compress writes batch files compressed with zstd.
	// Compressed and plain files can be read regardless of this setting.
	Compress bool
	// FilePerm is the permission of batch files, 0644 if not set
	FilePerm os.FileMode
	// NoSync skips fsync after writing a batch file. Faster, but a crash
	// can lose the last writes.
	NoSync bool
	// Name of record frames in batch files, for readability
	RecordName string
}

// Store keeps batches of records in files under a root directory.
// There is at most one file per key, at a path derived from the key.
//
// Store has no internal locking. Operations on different keys are
// independent. If two Save calls for the same key race, the last one
// to finish wins; Load sees either the old or the new batch.
type Store[T any] struct {
	resolver *shard.Resolver
	codec    *batch.Codec[T]
	opts     Options
}

// Open returns a Store rooted at dir, creating dir if needed
func Open[T any](dir string, records batch.RecordCodec[T], opts *Options) (*Store[T], error) {
	if records == nil {
		return nil, fmt.Errorf("must provide record codec")
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.FilePerm == 0 {
		o.FilePerm = atomicfile.DefaultPerm
	}

	r, err := shard.NewResolver(dir)
	if err != nil {
		return nil, newError("open", "", dir, err)
	}
	if err = os.MkdirAll(r.Root, 0755); err != nil {
		return nil, newError("open", "", r.Root, err)
	}
	st, err := os.Stat(r.Root)
	if err != nil {
		return nil, newError("open", "", r.Root, err)
	}
	if !st.IsDir() {
		return nil, newError("open", "", r.Root, fmt.Errorf("not a directory"))
	}

	return &Store[T]{
		resolver: r,
		codec: &batch.Codec[T]{
			Records:  records,
			Name:     o.RecordName,
			Compress: o.Compress,
		},
		opts: o,
	}, nil
}

// Root returns absolute path of the root directory
func (s *Store[T]) Root() string {
	return s.resolver.Root
}

// Path returns the path of the file storing the batch for key
func (s *Store[T]) Path(key string) string {
	return s.resolver.Path(key)
}

// Save replaces the batch stored for key with records
func (s *Store[T]) Save(key string, records []T) error {
	path, err := s.resolver.EnsureDirs(key)
	if err != nil {
		return newError("save", key, path, err)
	}
	// atomicfile would fail in rename but we want a clear error
	if st, err := os.Lstat(path); err == nil && !st.Mode().IsRegular() {
		return newError("save", key, path, fmt.Errorf("path exists and is not a regular file (mode: %s)", st.Mode()))
	}
	d, err := s.codec.Encode(records)
	if err != nil {
		return newError("save", key, path, err)
	}
	err = atomicfile.WriteFile(path, d, s.opts.FilePerm, s.opts.NoSync)
	if err != nil {
		return newError("save", key, path, err)
	}
	return nil
}

// SaveGrouped groups records by keyOf and saves each group as a batch
// for its key. Relative order of records within a group is preserved.
// Stops at first error; groups saved before the error stay saved.
func (s *Store[T]) SaveGrouped(records []T, keyOf func(T) string) error {
	var keys []string
	groups := map[string][]T{}
	for _, rec := range records {
		k := keyOf(rec)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], rec)
	}
	for _, k := range keys {
		if err := s.Save(k, groups[k]); err != nil {
			return err
		}
	}
	return nil
}

// Load returns records stored for key. If nothing is stored, returns
// an empty slice and no error.
func (s *Store[T]) Load(key string) ([]T, error) {
	path := s.resolver.Path(key)
	d, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, newError("load", key, path, err)
	}
	res, err := s.codec.Decode(d)
	if err != nil {
		return nil, corruptError(key, path, err)
	}
	return res, nil
}

// Has returns true if a batch is stored for key
func (s *Store[T]) Has(key string) (bool, error) {
	path := s.resolver.Path(key)
	st, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, newError("has", key, path, err)
	}
	if !st.Mode().IsRegular() {
		return false, newError("has", key, path, fmt.Errorf("path exists and is not a regular file (mode: %s)", st.Mode()))
	}
	return true, nil
}

// Delete removes the batch stored for key. Deleting a key that has
// nothing stored is a no-op.
func (s *Store[T]) Delete(key string) error {
	path := s.resolver.Path(key)
	st, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return newError("delete", key, path, err)
	}
	if st.IsDir() {
		return newError("delete", key, path, fmt.Errorf("path is a directory"))
	}
	err = os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newError("delete", key, path, err)
	}
	return nil
}
