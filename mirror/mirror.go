// Package mirror copies a store's shard files to and from S3-compatible
// object storage. Object names are the slash-separated shard paths,
// optionally under a prefix.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kjk/shardstore/atomicfile"
	"github.com/kjk/shardstore/shard"
	"github.com/kjk/shardstore/u"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentType = "application/octet-stream"

type Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// objects are stored under Prefix/ if set
	Prefix string
	// use http instead of https, for local minio
	Insecure bool
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("must provide config")
	}
	var missing []string
	if c.Access == "" {
		missing = append(missing, "Access")
	}
	if c.Secret == "" {
		missing = append(missing, "Secret")
	}
	if c.Bucket == "" {
		missing = append(missing, "Bucket")
	}
	if c.Endpoint == "" {
		missing = append(missing, "Endpoint")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

type Client struct {
	Client *minio.Client
	Bucket string
	prefix string
}

// New creates a client and checks that the bucket exists
func New(ctx context.Context, config *Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	c := config
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Client{
		Client: mc,
		Bucket: c.Bucket,
		prefix: normalizePrefix(c.Prefix),
	}, nil
}

func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, "/")
}

// RemotePath returns object name for a shard path relative to store root
func (c *Client) RemotePath(rel string) string {
	return remotePath(c.prefix, rel)
}

func remotePath(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// relFromRemote is the inverse of remotePath. Returns "" for object names
// outside of prefix or not in shard layout.
func relFromRemote(prefix, remote string) string {
	rel := remote
	if prefix != "" {
		var ok bool
		rel, ok = strings.CutPrefix(remote, prefix+"/")
		if !ok {
			return ""
		}
	}
	if !shard.IsShardRelPath(rel) {
		return ""
	}
	return rel
}

// shardFiles returns paths, relative to root, of files in shard layout.
// Leftover temp files and unrelated files are skipped.
func shardFiles(root string) ([]string, error) {
	files, err := u.ListFilesRecur(root)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, rel := range files {
		if shard.IsShardRelPath(rel) {
			res = append(res, rel)
		}
	}
	return res, nil
}

// Push uploads all shard files under root. Returns number of uploaded files.
func (c *Client) Push(ctx context.Context, root string) (int, error) {
	files, err := shardFiles(root)
	if err != nil {
		return 0, err
	}
	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}
	n := 0
	for _, rel := range files {
		pathLocal := filepath.Join(root, rel)
		pathRemote := c.RemotePath(rel)
		_, err = c.Client.FPutObject(ctx, c.Bucket, pathRemote, pathLocal, opts)
		if err != nil {
			return n, fmt.Errorf("upload of '%s' as '%s' failed: %w", pathLocal, pathRemote, err)
		}
		n++
	}
	return n, nil
}

// Pull downloads all shard objects into root, replacing local files.
// Returns number of downloaded files.
func (c *Client) Pull(ctx context.Context, root string) (int, error) {
	opts := minio.ListObjectsOptions{
		Recursive: true,
	}
	if c.prefix != "" {
		opts.Prefix = c.prefix + "/"
	}
	ctx, cancel := context.WithCancel(ctx)
	// stops the listing goroutine if we return early
	defer cancel()
	n := 0
	for obj := range c.Client.ListObjects(ctx, c.Bucket, opts) {
		if obj.Err != nil {
			return n, obj.Err
		}
		rel := relFromRemote(c.prefix, obj.Key)
		if rel == "" {
			continue
		}
		dstPath := filepath.Join(root, filepath.FromSlash(rel))
		if err := c.downloadFileAtomically(ctx, dstPath, obj.Key); err != nil {
			return n, fmt.Errorf("download of '%s' as '%s' failed: %w", obj.Key, dstPath, err)
		}
		n++
	}
	return n, nil
}

func (c *Client) downloadFileAtomically(ctx context.Context, dstPath string, remotePath string) error {
	obj, err := c.Client.GetObject(ctx, c.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	// ensure there's a dir for destination file
	err = os.MkdirAll(filepath.Dir(dstPath), 0755)
	if err != nil {
		return err
	}

	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	_, err = io.Copy(f, obj)
	if err != nil {
		return err
	}
	return f.Close()
}
