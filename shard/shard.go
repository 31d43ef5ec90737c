// Package shard maps arbitrary string keys to file paths in a two-level
// directory tree.
//
// A key is hashed with SHA-1 and the lowercase hex digest d is used as:
//
//	root/d[0]/d[1]/d
//
// With 16x16 buckets a directory holds roughly (number of keys)/256 files.
// The mapping is a pure function of the key so no index is needed to
// find a file. Collisions between keys are not detected.
package shard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kjk/shardstore/u"
)

// DigestLen is the length of hex-encoded digest
const DigestLen = 40

const dirPerm = 0755

// Digest returns lowercase hex SHA-1 of the UTF-8 bytes of key
func Digest(key string) string {
	return u.DataSha1Hex([]byte(key))
}

// RelPath returns path of a key relative to the root
func RelPath(key string) string {
	d := Digest(key)
	return filepath.Join(d[0:1], d[1:2], d)
}

type Resolver struct {
	Root string
}

// NewResolver returns a resolver for an absolute version of root
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory is not set. For current directory, use '.'")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", root, err)
	}
	return &Resolver{Root: abs}, nil
}

// Path returns the file path for key. Doesn't touch the file system.
func (r *Resolver) Path(key string) string {
	return filepath.Join(r.Root, RelPath(key))
}

// EnsureDirs creates missing shard directories for key and returns the
// file path. Fails if a path component exists but is not a directory.
func (r *Resolver) EnsureDirs(key string) (string, error) {
	path := r.Path(key)
	dir := filepath.Dir(path)
	// fast path: shard directories usually exist
	if u.DirExists(dir) {
		return path, nil
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return path, err
	}
	return path, nil
}

// IsShardRelPath returns true if rel (with '/' or os separators) has
// the x/y/<digest> layout produced by RelPath
func IsShardRelPath(rel string) bool {
	rel = filepath.ToSlash(rel)
	if len(rel) != 4+DigestLen {
		return false
	}
	d := rel[4:]
	if !isLowerHex(d) {
		return false
	}
	return rel[0] == d[0] && rel[1] == '/' && rel[2] == d[1] && rel[3] == '/'
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
