package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// UploadInput 描述一次受校验的上传。
type UploadInput struct {
	Bucket       string
	KeyPrefix    string
	Filename     string
	ContentType  string
	Size         int64
	Reader       io.Reader
	AllowedTypes []string
	MaxSizeMB    int64
}

// UploadResult 返回对象键与公开地址。
type UploadResult struct {
	ObjectKey string
	PublicURL string
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	PublicURL(bucket, objectKey string) string
}

// Upload 校验声明的类型与大小，生成防碰撞对象键并写入 Bucket。
// 校验失败（ErrUnsupportedType/ErrTooLarge）时不会发生任何网络写入。
func (c *Client) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	return upload(ctx, c, in)
}

func upload(ctx context.Context, putter objectPutter, in UploadInput) (*UploadResult, error) {
	if err := validateUpload(in); err != nil {
		return nil, err
	}

	objectKey := NewObjectKey(in.KeyPrefix, in.Filename)
	if _, err := putter.PutObject(ctx, in.Bucket, objectKey, in.Reader, in.Size, in.ContentType); err != nil {
		return nil, err
	}

	return &UploadResult{
		ObjectKey: objectKey,
		PublicURL: putter.PublicURL(in.Bucket, objectKey),
	}, nil
}

func validateUpload(in UploadInput) error {
	if in.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if len(in.AllowedTypes) > 0 {
		allowed := false
		for _, t := range in.AllowedTypes {
			if strings.EqualFold(strings.TrimSpace(t), contentType) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrUnsupportedType, in.ContentType)
		}
	}

	if in.MaxSizeMB > 0 && in.Size > in.MaxSizeMB*1024*1024 {
		return fmt.Errorf("%w: %d bytes over %d MB", ErrTooLarge, in.Size, in.MaxSizeMB)
	}

	return nil
}

// NewObjectKey 生成 prefix/uuid.ext 形式的对象键，保留原始扩展名。
func NewObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	key := uuid.NewString() + ext
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
