package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/MrWong99/nmspgate/pkg/artifact"
)

// apiError implements smithy.APIError.
type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type object struct {
	data        []byte
	contentType string
	meta        map[string]string
}

// fakeS3 is an in-memory S3 bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	copies  []*s3.CopyObjectInput
	headErr error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string]object)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	obj := object{data: data, meta: maps.Clone(in.Metadata)}
	if in.ContentType != nil {
		obj.contentType = *in.ContentType
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = obj
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NotFound"}
	}
	ct := obj.contentType
	return &s3.HeadObjectOutput{Metadata: maps.Clone(obj.meta), ContentType: &ct}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, in)
	src, ok := f.objects[strings.TrimPrefix(*in.CopySource, *in.Bucket+"/")]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	dst := object{data: src.data, contentType: src.contentType, meta: src.meta}
	if in.MetadataDirective == types.MetadataDirectiveReplace {
		dst.meta = maps.Clone(in.Metadata)
		if in.ContentType != nil {
			dst.contentType = *in.ContentType
		}
	}
	f.objects[*in.Key] = dst
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if *in.Bucket != "debug" {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestStore_PutAndAnnotate(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	s := NewWithClient(fake, "debug", "asr")
	ctx := context.Background()

	err := s.Put(ctx, artifact.Object{
		Key:         "uid-1/20260101T000000.000000Z.wav",
		ContentType: "audio/wav",
		Data:        []byte("RIFF...."),
		Meta:        artifact.Metadata{artifact.MetaLanguage: "en-us"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	err = s.Annotate(ctx, "uid-1/20260101T000000.000000Z.wav", artifact.Metadata{
		artifact.MetaTranscript: "hello world",
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	obj, ok := fake.objects["asr/uid-1/20260101T000000.000000Z.wav"]
	if !ok {
		t.Fatal("object not stored under prefixed key")
	}
	if !bytes.Equal(obj.data, []byte("RIFF....")) {
		t.Errorf("data = %q", obj.data)
	}
	if obj.contentType != "audio/wav" {
		t.Errorf("content type = %q, want audio/wav", obj.contentType)
	}
	if obj.meta[artifact.MetaLanguage] != "en-us" || obj.meta[artifact.MetaTranscript] != "hello world" {
		t.Errorf("metadata = %v", obj.meta)
	}
	if len(fake.copies) != 1 || fake.copies[0].MetadataDirective != types.MetadataDirectiveReplace {
		t.Errorf("copies = %+v, want one REPLACE copy", fake.copies)
	}
}

func TestStore_AnnotateMissing(t *testing.T) {
	t.Parallel()

	s := NewWithClient(newFakeS3(), "debug", "")
	err := s.Annotate(context.Background(), "nope.wav", artifact.Metadata{"a": "b"})
	if !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("err = %v, want %v", err, artifact.ErrNotFound)
	}
}

func TestStore_AnnotateHeadError(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.headErr = &apiError{code: "AccessDenied"}
	err := NewWithClient(fake, "debug", "").Annotate(context.Background(), "k", nil)
	if err == nil || errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("err = %v, want access error", err)
	}
}

func TestStore_Ping(t *testing.T) {
	t.Parallel()

	if err := NewWithClient(newFakeS3(), "debug", "").Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := NewWithClient(newFakeS3(), "other", "").Ping(context.Background()); err == nil {
		t.Error("Ping on missing bucket succeeded")
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New without bucket succeeded")
	}
	s, err := New(Config{Bucket: "debug", Endpoint: "http://localhost:9000", AccessKeyID: "a", SecretAccessKey: "b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.bucket != "debug" {
		t.Errorf("bucket = %q", s.bucket)
	}
}

func TestEscapeKey(t *testing.T) {
	t.Parallel()

	if got := escapeKey("asr/uid 1/a+b.wav"); got != "asr/uid%201/a+b.wav" {
		t.Errorf("escapeKey = %q", got)
	}
}
