package shard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
)

func TestDigest(t *testing.T) {
	tests := []struct {
		key string
		exp string
	}{
		{"path1", "074aeb9c5551d3b52d26cf3d6568599adbff99f1"},
		{"module1:path1", "18054aada7bd3b7ddd6de55caf50ae7bee376430"},
		{"", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
	}
	for _, tc := range tests {
		got := Digest(tc.key)
		assert.Equal(t, tc.exp, got)
		assert.Equal(t, DigestLen, len(got))
	}
}

func TestRelPath(t *testing.T) {
	got := RelPath("path1")
	exp := filepath.Join("0", "7", "074aeb9c5551d3b52d26cf3d6568599adbff99f1")
	assert.Equal(t, exp, got)
	got = RelPath("module1:path1")
	exp = filepath.Join("1", "8", "18054aada7bd3b7ddd6de55caf50ae7bee376430")
	assert.Equal(t, exp, got)
}

func TestNewResolver(t *testing.T) {
	_, err := NewResolver("")
	assert.Error(t, err)

	r, err := NewResolver(".")
	assert.NoError(t, err)
	assert.True(t, filepath.IsAbs(r.Root))

	dir := t.TempDir()
	r, err = NewResolver(dir)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, RelPath("a/b c")), r.Path("a/b c"))
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	assert.NoError(t, err)

	path, err := r.EnsureDirs("path1")
	assert.NoError(t, err)
	assert.Equal(t, r.Path("path1"), path)
	st, err := os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
	assert.True(t, st.IsDir())
	// the file itself is not created
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// existing dirs are fine
	_, err = r.EnsureDirs("path1")
	assert.NoError(t, err)

	// a file where a shard directory should be
	d := Digest("module1:path1")
	assert.NoError(t, os.WriteFile(filepath.Join(dir, d[0:1]), nil, 0644))
	_, err = r.EnsureDirs("module1:path1")
	assert.Error(t, err)
}

func TestIsShardRelPath(t *testing.T) {
	valid := []string{
		RelPath("path1"),
		RelPath("module1:path1"),
		"0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1",
	}
	for _, s := range valid {
		assert.True(t, IsShardRelPath(s), "s: %s", s)
	}
	invalid := []string{
		"",
		"074aeb9c5551d3b52d26cf3d6568599adbff99f1",
		"0/8/074aeb9c5551d3b52d26cf3d6568599adbff99f1",
		"1/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1",
		"0/7/074AEB9C5551D3B52D26CF3D6568599ADBFF99F1",
		"0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f",
		"0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1.tmp",
		"0-7-074aeb9c5551d3b52d26cf3d6568599adbff99f1",
		"0/7/074aeb9c5551d3b52d26cf3d6568599adbff99zz",
	}
	for _, s := range invalid {
		assert.False(t, IsShardRelPath(s), "s: %s", s)
	}
}
