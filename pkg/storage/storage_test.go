package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is a thread-safe in-memory S3 backend for testing.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	putErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	m.types[*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

// backends runs each test against Local and S3Store.
func backends(t *testing.T) map[string]FileStore {
	t.Helper()
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]FileStore{
		"local":     local,
		"s3":        NewS3(newMockS3(), "bucket", ""),
		"s3-prefix": NewS3(newMockS3(), "bucket", "/emora/"),
	}
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "enrollments/alice/latest.wav"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("Get missing: err = %v", err)
			}
			if err := s.Put(ctx, "enrollments/alice/latest.wav", []byte("v1"), "audio/wav"); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Put(ctx, "enrollments/alice/latest.wav", []byte("v2"), "audio/wav"); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			got, err := s.Get(ctx, "enrollments/alice/latest.wav")
			if err != nil || string(got) != "v2" {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if ok, err := s.Exists(ctx, "enrollments/alice/latest.wav"); err != nil || !ok {
				t.Fatalf("Exists = %v, %v", ok, err)
			}
			if err := s.Delete(ctx, "enrollments/alice/latest.wav"); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "enrollments/alice/latest.wav"); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if ok, _ := s.Exists(ctx, "enrollments/alice/latest.wav"); ok {
				t.Fatal("object still exists")
			}
		})
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"enrollments/bob/latest.ogg", "enrollments/alice/latest.webm", "enrollments/alice/latest.wav", "other/x"} {
				if err := s.Put(ctx, p, []byte("x"), ""); err != nil {
					t.Fatal(err)
				}
			}
			got, err := s.List(ctx, "enrollments/alice")
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"enrollments/alice/latest.wav", "enrollments/alice/latest.webm"}
			if !slices.Equal(got, want) {
				t.Fatalf("List = %v, want %v", got, want)
			}
			got, err = s.List(ctx, "nothing/here")
			if err != nil || len(got) != 0 {
				t.Fatalf("List empty = %v, %v", got, err)
			}
		})
	}
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"", "/etc/passwd", "../escape", "a/../../b", `a\b`, "."} {
				if err := s.Put(ctx, p, nil, ""); !errors.Is(err, ErrInvalidPath) {
					t.Errorf("Put(%q) err = %v, want ErrInvalidPath", p, err)
				}
			}
		})
	}
}

func TestS3PrefixAndContentType(t *testing.T) {
	mock := newMockS3()
	s := NewS3(mock, "bucket", "emora")
	if err := s.Put(context.Background(), "a/b.wav", []byte("x"), "audio/wav"); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["emora/a/b.wav"]; !ok {
		t.Fatalf("objects = %v", mock.objects)
	}
	if mock.types["emora/a/b.wav"] != "audio/wav" {
		t.Errorf("content type = %q", mock.types["emora/a/b.wav"])
	}
}

func TestS3PutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	s := NewS3(mock, "bucket", "")
	err := s.Put(context.Background(), "x", []byte("x"), "")
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("err = %v", err)
	}
}

func TestLocalPutLeavesNoTempFiles(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), "d/f", []byte("data"), ""); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(s.Root() + "/d")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "f" {
		t.Fatalf("dir entries = %v", entries)
	}
}
