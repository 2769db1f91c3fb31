package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// 上传校验错误。类型/大小检查在任何网络写入之前完成。
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds size limit")
)

// responseCodeIs 判断错误链中是否有匹配给定 S3 错误码的 minio 响应。
func responseCodeIs(err error, codes ...string) bool {
	var minioErr minio.ErrorResponse
	if !errors.As(err, &minioErr) {
		return false
	}
	code := strings.TrimSpace(minioErr.Code)
	for _, candidate := range codes {
		if strings.EqualFold(code, candidate) {
			return true
		}
	}
	return false
}

// messageContainsAny 兜底匹配：部分网关/代理会把响应包装成纯字符串错误。
func messageContainsAny(err error, fragments ...string) bool {
	lower := strings.ToLower(err.Error())
	for _, fragment := range fragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// IsNoSuchKey 判断错误是否明确表示对象不存在（S3/MinIO: NoSuchKey/NotFound）。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	return responseCodeIs(err, "NoSuchKey", "NotFound") ||
		messageContainsAny(err, "nosuchkey", "specified key does not exist", "not found")
}

// IsNoSuchBucket 判断错误是否明确表示 Bucket 不存在（S3/MinIO: NoSuchBucket）。
func IsNoSuchBucket(err error) bool {
	if err == nil {
		return false
	}
	return responseCodeIs(err, "NoSuchBucket") ||
		messageContainsAny(err, "nosuchbucket", "specified bucket does not exist")
}
