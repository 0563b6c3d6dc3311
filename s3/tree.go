// Package s3 provides an S3-compatible storage tree for satchel.
//
// Object keys are treated as '/' separated paths. A directory is any key
// prefix ending in '/' that has at least one object below it; explicit
// zero-byte "dir/" marker objects are accepted but not required.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/metrics"
)

const defaultContentType = "application/octet-stream"

// Config holds connection settings for an S3-compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix scopes the tree to keys below it.
	Prefix string
}

// Tree provides read access to objects in a bucket.
type Tree struct {
	client *minio.Client
	bucket string
	prefix string
}

// New connects to the endpoint described by cfg and checks that the
// bucket exists.
func New(ctx context.Context, cfg Config) (*Tree, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("new s3 tree: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("new s3 tree: check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("new s3 tree: bucket %s does not exist", cfg.Bucket)
	}

	return NewTree(client, cfg.Bucket, cfg.Prefix), nil
}

// NewTree wraps an existing client.
func NewTree(client *minio.Client, bucket, prefix string) *Tree {
	return &Tree{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Stat returns the object at p, or a directory entry when p is a
// non-empty key prefix.
func (t *Tree) Stat(ctx context.Context, p string) (satchel.Entry, error) {
	if err := ctx.Err(); err != nil {
		return satchel.Entry{}, err
	}

	if p == "" {
		return satchel.Entry{Path: "", Name: "", IsDir: true}, nil
	}

	info, err := t.statObject(ctx, p)
	if err == nil {
		return t.toEntry(info), nil
	}
	if !errors.Is(err, satchel.ErrNotFound) {
		return satchel.Entry{}, err
	}

	hasChildren, err := t.hasChildren(ctx, p)
	if err != nil {
		return satchel.Entry{}, err
	}
	if !hasChildren {
		return satchel.Entry{}, satchel.ErrNotFound
	}

	return satchel.Entry{Path: p, Name: path.Base(p), IsDir: true}, nil
}

// List returns the immediate children of dir in key order.
func (t *Tree) List(ctx context.Context, dir string) ([]satchel.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := dirPrefix(t.key(dir))

	start := time.Now()
	found := false
	entries := []satchel.Entry{}
	for obj := range t.client.ListObjects(ctx, t.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			metrics.RecordS3Operation("list", time.Since(start), false)
			return nil, fmt.Errorf("list %s: %w", dir, mapErr(obj.Err))
		}

		found = true

		// the directory marker object itself
		if obj.Key == prefix {
			continue
		}

		entries = append(entries, t.toEntry(obj))
	}
	metrics.RecordS3Operation("list", time.Since(start), true)

	if !found && dir != "" {
		return nil, satchel.ErrNotFound
	}

	return entries, nil
}

// Readable reports whether the object at p exists and can be read.
func (t *Tree) Readable(ctx context.Context, p string) bool {
	info, err := t.statObject(ctx, p)
	return err == nil && !strings.HasSuffix(info.Key, "/")
}

// Open returns a reader for the object at p.
func (t *Tree) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	obj, err := t.client.GetObject(ctx, t.bucket, t.key(p), minio.GetObjectOptions{})
	if err != nil {
		metrics.RecordS3Operation("get", time.Since(start), false)
		return nil, fmt.Errorf("open %s: %w", p, mapErr(err))
	}

	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		metrics.RecordS3Operation("get", time.Since(start), false)
		return nil, fmt.Errorf("open %s: %w", p, mapErr(err))
	}
	metrics.RecordS3Operation("get", time.Since(start), true)

	return obj, nil
}

// MimeType returns the stored content type of the object, falling back to
// the type registered for its extension.
func (t *Tree) MimeType(ctx context.Context, p string) string {
	info, err := t.statObject(ctx, p)
	if err == nil && info.ContentType != "" && info.ContentType != defaultContentType {
		return info.ContentType
	}
	return contentTypeByExt(p)
}

// Send copies the object at p to w.
func (t *Tree) Send(ctx context.Context, p string, w io.Writer) (int64, error) {
	rc, err := t.Open(ctx, p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("send %s: %w", p, err)
	}
	return n, nil
}

func (t *Tree) statObject(ctx context.Context, p string) (minio.ObjectInfo, error) {
	start := time.Now()
	info, err := t.client.StatObject(ctx, t.bucket, t.key(p), minio.StatObjectOptions{})
	metrics.RecordS3Operation("stat", time.Since(start), err == nil)
	if err != nil {
		return minio.ObjectInfo{}, mapErr(err)
	}
	return info, nil
}

func (t *Tree) hasChildren(ctx context.Context, p string) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{Prefix: dirPrefix(t.key(p)), MaxKeys: 1}
	for obj := range t.client.ListObjects(ctx, t.bucket, opts) {
		if obj.Err != nil {
			return false, fmt.Errorf("stat %s: %w", p, mapErr(obj.Err))
		}
		return true, nil
	}
	return false, nil
}

func (t *Tree) key(p string) string {
	return joinKey(t.prefix, p)
}

func (t *Tree) rel(key string) string {
	key = strings.TrimSuffix(key, "/")
	if t.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, t.prefix+"/")
}

func (t *Tree) toEntry(obj minio.ObjectInfo) satchel.Entry {
	p := t.rel(obj.Key)
	if strings.HasSuffix(obj.Key, "/") {
		return satchel.Entry{Path: p, Name: path.Base(p), IsDir: true}
	}
	return satchel.Entry{
		Path:    p,
		Name:    path.Base(p),
		Size:    obj.Size,
		ModTime: obj.LastModified,
	}
}

func joinKey(prefix, p string) string {
	switch {
	case prefix == "":
		return p
	case p == "":
		return prefix
	default:
		return prefix + "/" + p
	}
}

func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}

func contentTypeByExt(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return defaultContentType
}

func mapErr(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.Code == "NoSuchBucket", resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", satchel.ErrNotFound, err)
	case resp.Code == "AccessDenied", resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", satchel.ErrForbidden, err)
	default:
		return err
	}
}
