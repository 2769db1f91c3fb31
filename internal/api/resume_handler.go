package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"talentbridge/internal/api/middleware"
	"talentbridge/internal/database"
	"talentbridge/internal/resume"
	"talentbridge/internal/storage"
	"talentbridge/internal/tasks"
)

// ResumeHandler 处理结构化简历的增删改查、主简历切换与 PDF 导出。
type ResumeHandler struct {
	db            *gorm.DB
	storageClient *storage.Client
	asynqClient   *asynq.Client
	resumesBucket string
	presignTTL    time.Duration
	logger        *slog.Logger
}

// NewResumeHandler 构造简历处理器。
func NewResumeHandler(db *gorm.DB, storageClient *storage.Client, asynqClient *asynq.Client, resumesBucket string, presignTTL time.Duration, logger *slog.Logger) *ResumeHandler {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &ResumeHandler{
		db:            db,
		storageClient: storageClient,
		asynqClient:   asynqClient,
		resumesBucket: resumesBucket,
		presignTTL:    presignTTL,
		logger:        logger,
	}
}

type resumeSummary struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	IsPrimary bool   `json:"is_primary"`
	Version   int    `json:"version"`
	PdfStatus string `json:"pdf_status,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

type resumeDetail struct {
	resumeSummary
	Content json.RawMessage `json:"content"`
}

// List 返回当前用户的全部简历，按更新时间倒序。
func (h *ResumeHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	var resumes []database.Resume
	if err := h.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&resumes).Error; err != nil {
		logger.Error("list resumes failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	out := make([]resumeSummary, 0, len(resumes))
	for _, r := range resumes {
		out = append(out, toResumeSummary(&r))
	}
	c.JSON(http.StatusOK, gin.H{"resumes": out})
}

type createResumeRequest struct {
	Title   string          `json:"title" binding:"required,min=1,max=255"`
	Content json.RawMessage `json:"content"`
}

// Create 新建一份简历。用户的第一份简历自动成为主简历。
func (h *ResumeHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	content, err := normalizeContent(req.Content)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	var count int64
	if err := h.db.WithContext(ctx).Model(&database.Resume{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		logger.Error("count resumes failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	record := database.Resume{
		UserID:    userID,
		Title:     req.Title,
		Content:   content,
		IsPrimary: count == 0,
		Version:   1,
	}
	if err := h.db.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Error("create resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("resume created", slog.Uint64("resume_id", uint64(record.ID)))
	c.JSON(http.StatusCreated, toResumeDetail(&record))
}

// Get 返回单份简历的完整内容。
func (h *ResumeHandler) Get(c *gin.Context) {
	record, ok := h.ownedResume(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toResumeDetail(record))
}

type updateResumeRequest struct {
	Title   *string         `json:"title" binding:"omitempty,min=1,max=255"`
	Content json.RawMessage `json:"content"`
	Version int             `json:"version" binding:"required,min=1"`
}

// Update 更新简历。请求必须携带读取时的版本号，版本不匹配返回 409，
// 避免两个窗口互相覆盖。
func (h *ResumeHandler) Update(c *gin.Context) {
	var req updateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	record, ok := h.ownedResume(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(record.UserID)),
		slog.Uint64("resume_id", uint64(record.ID)),
	)

	updates := map[string]any{"version": gorm.Expr("version + 1")}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if len(req.Content) > 0 {
		content, err := normalizeContent(req.Content)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		updates["content"] = content
	}

	// 带版本条件的更新，零行命中说明版本已被其他写入推进。
	res := h.db.WithContext(ctx).Model(&database.Resume{}).
		Where("id = ? AND user_id = ? AND version = ?", record.ID, record.UserID, req.Version).
		Updates(updates)
	if res.Error != nil {
		logger.Error("update resume failed", slog.Any("error", res.Error))
		Internal(c, "internal error")
		return
	}
	if res.RowsAffected == 0 {
		Conflict(c, "resume was modified by another session")
		return
	}

	var fresh database.Resume
	if err := h.db.WithContext(ctx).First(&fresh, record.ID).Error; err != nil {
		logger.Error("reload resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toResumeDetail(&fresh))
}

// Delete 删除简历及其已生成的 PDF 对象。
func (h *ResumeHandler) Delete(c *gin.Context) {
	record, ok := h.ownedResume(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(record.UserID)),
		slog.Uint64("resume_id", uint64(record.ID)),
	)

	if err := h.db.WithContext(ctx).Delete(record).Error; err != nil {
		logger.Error("delete resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if record.PdfObjectKey != "" && h.storageClient != nil {
		if err := h.storageClient.DeleteObject(ctx, h.resumesBucket, record.PdfObjectKey); err != nil {
			logger.Warn("delete resume pdf failed", slog.Any("error", err))
		}
	}

	c.Status(http.StatusNoContent)
}

// SetPrimary 将指定简历设为主简历。同一事务内先清除旧主简历再设置新主
// 简历，任何时刻每个用户至多一份主简历。
func (h *ResumeHandler) SetPrimary(c *gin.Context) {
	record, ok := h.ownedResume(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(record.UserID)),
		slog.Uint64("resume_id", uint64(record.ID)),
	)

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Resume{}).
			Where("user_id = ? AND is_primary = ?", record.UserID, true).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		return tx.Model(&database.Resume{}).
			Where("id = ?", record.ID).
			Update("is_primary", true).Error
	})
	if err != nil {
		logger.Error("set primary resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	record.IsPrimary = true
	c.JSON(http.StatusOK, toResumeSummary(record))
}

// Export 将 PDF 导出任务入队，立即返回 202。
func (h *ResumeHandler) Export(c *gin.Context) {
	record, ok := h.ownedResume(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(record.UserID)),
		slog.Uint64("resume_id", uint64(record.ID)),
	)

	task, err := tasks.NewResumeExportTask(record.ID, middleware.GetCorrelationID(c))
	if err != nil {
		logger.Error("build export task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if _, err := h.asynqClient.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)); err != nil {
		logger.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(record).Update("pdf_status", database.PdfStatusPending).Error; err != nil {
		logger.Error("mark pdf pending failed", slog.Any("error", err))
	}

	logger.Info("resume export enqueued")
	c.JSON(http.StatusAccepted, gin.H{"status": database.PdfStatusPending})
}

// DownloadLink 为已生成的 PDF 签发限时下载链接。
func (h *ResumeHandler) DownloadLink(c *gin.Context) {
	record, ok := h.ownedResume(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(record.UserID)),
		slog.Uint64("resume_id", uint64(record.ID)),
	)

	if record.PdfObjectKey == "" || record.PdfStatus != database.PdfStatusReady {
		NotFound(c, "pdf not generated yet")
		return
	}

	downloadURL, err := h.storageClient.GeneratePresignedURL(ctx, h.resumesBucket, record.PdfObjectKey, h.presignTTL)
	if err != nil {
		logger.Error("presign pdf url failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":        downloadURL,
		"expires_in": int(h.presignTTL.Seconds()),
	})
}

// ownedResume 按路径参数加载当前用户名下的简历，处理所有失败分支。
func (h *ResumeHandler) ownedResume(c *gin.Context) (*database.Resume, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	resumeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid resume id")
		return nil, false
	}

	var record database.Resume
	if err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", resumeID, userID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "resume not found")
			return nil, false
		}
		requestLogger(c, h.logger).Error("load resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	return &record, true
}

// normalizeContent 解析、规范化并校验简历内容，返回可入库的 JSONB。
func normalizeContent(raw json.RawMessage) (datatypes.JSON, error) {
	var content resume.Content
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, errors.New("content must be a structured resume document")
		}
	}
	content.Normalize()
	if err := content.Validate(); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}

func toResumeSummary(r *database.Resume) resumeSummary {
	return resumeSummary{
		ID:        r.ID,
		Title:     r.Title,
		IsPrimary: r.IsPrimary,
		Version:   r.Version,
		PdfStatus: r.PdfStatus,
		UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toResumeDetail(r *database.Resume) resumeDetail {
	detail := resumeDetail{resumeSummary: toResumeSummary(r)}
	if len(r.Content) > 0 {
		detail.Content = json.RawMessage(r.Content)
	} else {
		detail.Content = json.RawMessage("{}")
	}
	return detail
}
