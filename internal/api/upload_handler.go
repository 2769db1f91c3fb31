package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"talentbridge/internal/database"
	"talentbridge/internal/storage"
)

// 各类上传的限制。头像与 Logo 只接受常见图片格式，简历附件只接受 PDF。
var (
	imageContentTypes = []string{"image/png", "image/jpeg", "image/webp"}
	pdfContentTypes   = []string{"application/pdf"}
)

const (
	imageMaxSizeMB = 5
	pdfMaxSizeMB   = 10
)

// UploadHandler 处理头像、公司 Logo 与简历附件上传。所有上传先经
// clamd 扫描（配置了地址时），再做类型与大小校验，最后写入对象存储。
type UploadHandler struct {
	db            *gorm.DB
	storageClient *storage.Client
	clamdAddr     string
	avatarsBucket string
	logosBucket   string
	resumesBucket string
	logger        *slog.Logger
}

// NewUploadHandler 构造上传处理器。
func NewUploadHandler(db *gorm.DB, storageClient *storage.Client, clamdAddr, avatarsBucket, logosBucket, resumesBucket string, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		db:            db,
		storageClient: storageClient,
		clamdAddr:     clamdAddr,
		avatarsBucket: avatarsBucket,
		logosBucket:   logosBucket,
		resumesBucket: resumesBucket,
		logger:        logger,
	}
}

// UploadAvatar 上传学生头像并更新资料中的 AvatarURL。
func (h *UploadHandler) UploadAvatar(c *gin.Context) {
	h.handleUpload(c, uploadSpec{
		bucket:       h.avatarsBucket,
		allowedTypes: imageContentTypes,
		maxSizeMB:    imageMaxSizeMB,
		apply: func(c *gin.Context, userID uint, result *storage.UploadResult) error {
			return h.db.WithContext(c.Request.Context()).
				Model(&database.StudentProfile{}).
				Where("user_id = ?", userID).
				Update("avatar_url", result.PublicURL).Error
		},
	})
}

// UploadLogo 上传公司 Logo 并更新雇主资料中的 LogoURL。
func (h *UploadHandler) UploadLogo(c *gin.Context) {
	h.handleUpload(c, uploadSpec{
		bucket:       h.logosBucket,
		allowedTypes: imageContentTypes,
		maxSizeMB:    imageMaxSizeMB,
		apply: func(c *gin.Context, userID uint, result *storage.UploadResult) error {
			return h.db.WithContext(c.Request.Context()).
				Model(&database.EmployerProfile{}).
				Where("user_id = ?", userID).
				Update("logo_url", result.PublicURL).Error
		},
	})
}

// UploadResumeFile 上传 PDF 简历附件并更新资料中的 ResumeFileURL。
func (h *UploadHandler) UploadResumeFile(c *gin.Context) {
	h.handleUpload(c, uploadSpec{
		bucket:       h.resumesBucket,
		allowedTypes: pdfContentTypes,
		maxSizeMB:    pdfMaxSizeMB,
		apply: func(c *gin.Context, userID uint, result *storage.UploadResult) error {
			return h.db.WithContext(c.Request.Context()).
				Model(&database.StudentProfile{}).
				Where("user_id = ?", userID).
				Update("resume_file_url", result.PublicURL).Error
		},
	})
}

type uploadSpec struct {
	bucket       string
	allowedTypes []string
	maxSizeMB    int64
	apply        func(c *gin.Context, userID uint, result *storage.UploadResult) error
}

func (h *UploadHandler) handleUpload(c *gin.Context, spec uploadSpec) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.String("bucket", spec.bucket),
		slog.String("filename", file.Filename),
	)

	if h.clamdAddr != "" {
		clean, err := h.scanFile(file)
		if err != nil {
			logger.Error("scan file failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
		if !clean {
			logger.Warn("malicious file rejected")
			BadRequest(c, "malicious file detected")
			return
		}
	}

	reader, err := file.Open()
	if err != nil {
		logger.Error("open upload failed", slog.Any("error", err))
		Internal(c, "failed to read file")
		return
	}
	defer reader.Close()

	contentType := file.Header.Get("Content-Type")
	result, err := h.storageClient.Upload(c.Request.Context(), storage.UploadInput{
		Bucket:       spec.bucket,
		KeyPrefix:    fmt.Sprintf("user-%d", userID),
		Filename:     file.Filename,
		ContentType:  contentType,
		Size:         file.Size,
		Reader:       reader,
		AllowedTypes: spec.allowedTypes,
		MaxSizeMB:    spec.maxSizeMB,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			BadRequest(c, "unsupported file type")
		case errors.Is(err, storage.ErrTooLarge):
			Error(c, http.StatusRequestEntityTooLarge, "file too large")
		default:
			logger.Error("upload failed", slog.Any("error", err))
			Internal(c, "failed to upload file")
		}
		return
	}

	if err := spec.apply(c, userID, result); err != nil {
		// 对象已写入但记录未更新，返回错误交由客户端重试。
		logger.Error("persist upload url failed", slog.Any("error", err))
		Internal(c, "failed to record upload")
		return
	}

	logger.Info("file uploaded", slog.String("object_key", result.ObjectKey))
	c.JSON(http.StatusCreated, gin.H{
		"object_key": result.ObjectKey,
		"url":        result.PublicURL,
	})
}

// scanFile 将上传内容送入 clamd 流式扫描。
func (h *UploadHandler) scanFile(file *multipart.FileHeader) (bool, error) {
	reader, err := file.Open()
	if err != nil {
		return false, err
	}
	defer reader.Close()

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(reader, abortChan)
	if err != nil {
		return false, err
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return false, nil
		}
	}
	return true, nil
}
