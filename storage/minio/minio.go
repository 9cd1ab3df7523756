// Package minio implements storage.Directory over MinIO and other
// S3-compatible object stores.
//
// Object stores expose handle-based, natively asynchronous access with no
// append primitive, so Append is a read-modify-rewrite of the whole
// object. That keeps the database portable to environments whose storage
// only offers whole-object reads and writes; the store layer already
// accounts for the whole-file read on this kind of backend.
package minio

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"golang.org/x/time/rate"

	"github.com/victordb/victor/storage"
)

// Options configures a Directory.
type Options struct {
	// RequestsPerSecond throttles object-store requests. Zero disables
	// throttling.
	RequestsPerSecond float64
}

// Directory implements storage.Directory on a MinIO bucket prefix.
type Directory struct {
	client  *minio.Client
	bucket  string
	prefix  string
	limiter *rate.Limiter
}

// NewDirectory creates a Directory rooted at bucket/rootPrefix.
func NewDirectory(client *minio.Client, bucket, rootPrefix string, optFns ...func(o *Options)) *Directory {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Directory{
		client:  client,
		bucket:  bucket,
		prefix:  rootPrefix,
		limiter: limiter,
	}
}

func (d *Directory) key(name string) string {
	return path.Join(d.prefix, name)
}

func (d *Directory) wait(ctx context.Context) error {
	if d.limiter == nil {
		return nil
	}
	return d.limiter.Wait(ctx)
}

// OpenOrCreate opens the named object, creating it empty if absent.
func (d *Directory) OpenOrCreate(ctx context.Context, name string) (storage.File, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	key := d.key(name)

	_, err := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code != "NoSuchKey" && errResp.Code != "NotFound" {
			return nil, err
		}
		// Absent: create empty.
		if err := d.wait(ctx); err != nil {
			return nil, err
		}
		if _, err := d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{}); err != nil {
			return nil, err
		}
	}

	return &objectFile{dir: d, key: key}, nil
}

// Remove removes the named object if present.
func (d *Directory) Remove(ctx context.Context, name string) error {
	if err := d.wait(ctx); err != nil {
		return err
	}

	err := d.client.RemoveObject(ctx, d.bucket, d.key(name), minio.RemoveObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil // Already gone
		}
		return err
	}
	return nil
}

type objectFile struct {
	dir *Directory
	key string
}

func (f *objectFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := f.dir.wait(ctx); err != nil {
		return nil, err
	}

	obj, err := f.dir.client.GetObject(ctx, f.dir.bucket, f.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, f.mapErr(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, f.mapErr(err)
	}
	return data, nil
}

// Append rewrites the object with the new bytes attached. There is no
// append primitive on object storage; the durability requirement holds
// because PutObject only acknowledges a fully persisted object.
func (f *objectFile) Append(ctx context.Context, p []byte) error {
	existing, err := f.ReadAll(ctx)
	if err != nil {
		return err
	}

	combined := make([]byte, 0, len(existing)+len(p))
	combined = append(combined, existing...)
	combined = append(combined, p...)

	return f.put(ctx, combined)
}

func (f *objectFile) Size(ctx context.Context) (int64, error) {
	if err := f.dir.wait(ctx); err != nil {
		return 0, err
	}

	info, err := f.dir.client.StatObject(ctx, f.dir.bucket, f.key, minio.StatObjectOptions{})
	if err != nil {
		return 0, f.mapErr(err)
	}
	return info.Size, nil
}

func (f *objectFile) Truncate(ctx context.Context, size int64) error {
	existing, err := f.ReadAll(ctx)
	if err != nil {
		return err
	}
	if size >= int64(len(existing)) {
		return nil
	}
	return f.put(ctx, existing[:size])
}

func (f *objectFile) Close() error { return nil }

func (f *objectFile) put(ctx context.Context, data []byte) error {
	if err := f.dir.wait(ctx); err != nil {
		return err
	}

	_, err := f.dir.client.PutObject(ctx, f.dir.bucket, f.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (f *objectFile) mapErr(err error) error {
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
		return storage.ErrNotFound
	}
	return err
}
