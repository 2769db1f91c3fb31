package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakePutter struct {
	puts []string
}

func (f *fakePutter) PutObject(_ context.Context, bucket, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	f.puts = append(f.puts, bucket+"/"+objectName)
	_, _ = io.Copy(io.Discard, reader)
	return &minio.UploadInfo{}, nil
}

func (f *fakePutter) PublicURL(bucket, objectKey string) string {
	return "http://cdn.example/" + bucket + "/" + objectKey
}

func TestUploadRejectsUnsupportedTypeBeforeWrite(t *testing.T) {
	putter := &fakePutter{}
	_, err := upload(context.Background(), putter, UploadInput{
		Bucket:       "avatars",
		Filename:     "cv.pdf",
		ContentType:  "application/pdf",
		Size:         100,
		Reader:       bytes.NewReader([]byte("x")),
		AllowedTypes: []string{"image/png", "image/jpeg"},
		MaxSizeMB:    5,
	})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
	if len(putter.puts) != 0 {
		t.Errorf("no object must be written on validation failure, got %v", putter.puts)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	putter := &fakePutter{}
	_, err := upload(context.Background(), putter, UploadInput{
		Bucket:       "resumes",
		Filename:     "cv.pdf",
		ContentType:  "application/pdf",
		Size:         11 * 1024 * 1024,
		Reader:       bytes.NewReader([]byte("x")),
		AllowedTypes: []string{"application/pdf"},
		MaxSizeMB:    10,
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge, got %v", err)
	}
	if len(putter.puts) != 0 {
		t.Errorf("no object must be written on validation failure, got %v", putter.puts)
	}
}

func TestUploadStoresUnderGeneratedKey(t *testing.T) {
	putter := &fakePutter{}
	result, err := upload(context.Background(), putter, UploadInput{
		Bucket:       "avatars",
		KeyPrefix:    "user-7",
		Filename:     "me.PNG",
		ContentType:  "image/png",
		Size:         1024,
		Reader:       bytes.NewReader([]byte("png")),
		AllowedTypes: []string{"image/png"},
		MaxSizeMB:    5,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !strings.HasPrefix(result.ObjectKey, "user-7/") || !strings.HasSuffix(result.ObjectKey, ".png") {
		t.Errorf("object key = %q, want user-7/<uuid>.png", result.ObjectKey)
	}
	if result.PublicURL != "http://cdn.example/avatars/"+result.ObjectKey {
		t.Errorf("public url = %q", result.PublicURL)
	}
	if len(putter.puts) != 1 {
		t.Errorf("exactly one object write expected, got %v", putter.puts)
	}
}

func TestNewObjectKeyUnique(t *testing.T) {
	a := NewObjectKey("p", "a.png")
	b := NewObjectKey("p", "a.png")
	if a == b {
		t.Error("object keys must not collide")
	}
}
