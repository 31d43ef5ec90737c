// Package store provides a file-backed store of record batches keyed by
// an arbitrary string.
//
// # Store Structure
//
// Each key maps to exactly one file (see package shard):
//
//	root/0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1
//
// The file contains the batch encoded by package batch. Saving replaces
// the whole file atomically (write to temp file, rename), so a reader sees
// either the previous or the new batch.
//
// # Basic Usage
//
//	s, err := store.Open[Issue](dir, batch.JSON[Issue]{}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = s.Save("src/main.go", issues)
//	issues, err = s.Load("src/main.go")
//	err = s.Delete("src/main.go")
//
// A key that was never saved (or was deleted) loads as an empty slice.
// Deleting it is a no-op.
//
// # Errors
//
// All file system failures are returned as *Error, which carries the
// operation, key and path. Files that can't be decoded also wrap ErrCorrupt.
// The store doesn't retry and doesn't log.
package store
