// Package s3store implements artifact.Store on Amazon S3 or any
// S3-compatible object store (MinIO, R2, GCS interoperability).
//
// S3 metadata cannot be edited in place, so [Store.Annotate] copies the
// object onto itself with a replaced metadata set.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/MrWong99/nmspgate/pkg/artifact"
)

// Client is the subset of the S3 API used by [Store]. [s3.Client]
// satisfies it.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config describes how to reach the bucket.
type Config struct {
	Bucket string

	// Prefix is prepended to every key, separated by "/".
	Prefix string

	// Region defaults to "us-east-1".
	Region string

	// Endpoint overrides the AWS endpoint. Setting it switches to path-style
	// addressing, which is what most S3-compatible servers expect.
	Endpoint string

	// AccessKeyID and SecretAccessKey are static credentials. When both are
	// empty requests are sent unsigned.
	AccessKeyID     string
	SecretAccessKey string
}

// Store is an S3-backed [artifact.Store]. It is safe for concurrent use.
type Store struct {
	client Client
	bucket string
	prefix string
}

var _ artifact.Store = (*Store)(nil)

// New builds an S3 client from cfg and returns a Store on cfg.Bucket.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	opts := s3.Options{
		Region: cfg.Region,
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Source:          "nmspgate config",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	return NewWithClient(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient returns a Store that uses an already configured client.
func NewWithClient(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Put uploads obj. S3 silently overwrites, so an existing key is not
// reported.
func (s *Store) Put(ctx context.Context, obj artifact.Object) error {
	in := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key(obj.Key)),
		Body:     bytes.NewReader(obj.Data),
		Metadata: obj.Meta,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3store: put %s: %w", obj.Key, err)
	}
	return nil
}

// Annotate reads the current metadata, merges meta and copies the object
// onto itself with the result.
func (s *Store) Annotate(ctx context.Context, key string, meta artifact.Metadata) error {
	full := s.key(key)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("s3store: annotate %s: %w", key, artifact.ErrNotFound)
		}
		return fmt.Errorf("s3store: annotate %s: head: %w", key, err)
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(full),
		CopySource:        aws.String(url.PathEscape(s.bucket) + "/" + escapeKey(full)),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          artifact.Metadata(head.Metadata).Merge(meta),
		ContentType:       head.ContentType,
	})
	if err != nil {
		return fmt.Errorf("s3store: annotate %s: copy: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket exists and is accessible.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3store: head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Close is a no-op; the HTTP client is shared.
func (s *Store) Close() error { return nil }

// escapeKey URL-escapes every path segment of key and keeps the separators.
func escapeKey(key string) string {
	return (&url.URL{Path: key}).EscapedPath()
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
