// Package s3 implements storage.Directory over AWS S3.
//
// Like every object store, S3 offers no append primitive; Append is a
// read-modify-rewrite of the whole object. Intended for small corpora
// where durability and reachability matter more than write volume.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/victordb/victor/storage"
)

// Client is the subset of the S3 API the directory uses.
// *s3.Client satisfies it; tests substitute a mock. The multipart
// methods make it a superset of manager.UploadAPIClient so the uploader
// can take it directly.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Compile-time check that Client stays assignable to the uploader's API.
var _ manager.UploadAPIClient = (Client)(nil)

// NewDefaultClient builds an S3 client from the default AWS config chain
// (environment, shared config, instance metadata).
func NewDefaultClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// Directory implements storage.Directory on an S3 bucket prefix.
type Directory struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewDirectory creates a Directory rooted at bucket/rootPrefix.
func NewDirectory(client Client, bucket, rootPrefix string) *Directory {
	return &Directory{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   rootPrefix,
	}
}

func (d *Directory) key(name string) string {
	return path.Join(d.prefix, name)
}

// OpenOrCreate opens the named object, creating it empty if absent.
func (d *Directory) OpenOrCreate(ctx context.Context, name string) (storage.File, error) {
	key := d.key(name)

	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		// Absent: create empty.
		_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return nil, err
		}
	}

	return &objectFile{dir: d, key: key}, nil
}

// Remove removes the named object. S3 deletes are idempotent, so an
// absent key is not an error.
func (d *Directory) Remove(ctx context.Context, name string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(name)),
	})
	return err
}

type objectFile struct {
	dir *Directory
	key string
}

func (f *objectFile) ReadAll(ctx context.Context) ([]byte, error) {
	out, err := f.dir.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.dir.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

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
	head, err := f.dir.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.dir.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return 0, mapErr(err)
	}
	return aws.ToInt64(head.ContentLength), nil
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
	_, err := f.dir.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.dir.bucket),
		Key:    aws.String(f.key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func mapErr(err error) error {
	if isNotFound(err) {
		return storage.ErrNotFound
	}
	return err
}
