package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/kjk/shardstore/shard"
)

func TestConfigValidation(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, nil)
	assert.Error(t, err)

	_, err = New(ctx, &Config{Access: "a", Bucket: "b"})
	assert.EqualError(t, err, "missing config fields: Secret, Endpoint")

	_, err = New(ctx, &Config{})
	assert.EqualError(t, err, "missing config fields: Access, Secret, Bucket, Endpoint")
}

func TestRemotePath(t *testing.T) {
	rel := shard.RelPath("path1")
	assert.Equal(t, "0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1", remotePath("", rel))
	assert.Equal(t, "issues/0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1", remotePath("issues", rel))

	c := &Client{prefix: normalizePrefix("/a/b/")}
	assert.Equal(t, "a/b/0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1", c.RemotePath(rel))
}

func TestRelFromRemote(t *testing.T) {
	key := "0/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1"
	assert.Equal(t, key, relFromRemote("", key))
	assert.Equal(t, key, relFromRemote("p", "p/"+key))
	assert.Equal(t, "", relFromRemote("p", key))
	assert.Equal(t, "", relFromRemote("p", "px/"+key))
	assert.Equal(t, "", relFromRemote("", "readme.txt"))
	assert.Equal(t, "", relFromRemote("", "1/7/074aeb9c5551d3b52d26cf3d6568599adbff99f1"))

	for _, k := range []string{"path1", "module1:path1", ""} {
		rel := shard.RelPath(k)
		assert.Equal(t, filepath.ToSlash(rel), relFromRemote("pre", remotePath("pre", rel)))
	}
}

func TestShardFiles(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		path := filepath.Join(root, rel)
		assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
	relA := shard.RelPath("path1")
	relB := shard.RelPath("module1:path1")
	write(relA)
	write(relB)
	write(relA + ".tmp123")
	write("notes.txt")
	write(filepath.Join("0", "7", "notes.txt"))

	files, err := shardFiles(root)
	assert.NoError(t, err)
	assert.Equal(t, []string{relA, relB}, files)

	_, err = shardFiles(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
