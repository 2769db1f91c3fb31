package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"talentbridge/internal/database"
	"talentbridge/internal/errcode"
)

// InternalHandler 暴露给 worker 的内部接口，经 X-Internal-Secret 保护。
type InternalHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewInternalHandler 构造内部接口处理器。
func NewInternalHandler(db *gorm.DB, logger *slog.Logger) *InternalHandler {
	return &InternalHandler{db: db, logger: logger}
}

// GetResumeRenderData 返回渲染 PDF 所需的简历数据。响应使用业务码：
// 0 成功，4004 简历不存在，5000 系统错误。
func (h *InternalHandler) GetResumeRenderData(c *gin.Context) {
	resumeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errcode.ResourceMissing, "message": "invalid resume id"})
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("resume_id", resumeID))

	var record database.Resume
	if err := h.db.WithContext(ctx).First(&record, resumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": errcode.ResourceMissing, "message": "resume not found"})
			return
		}
		logger.Error("load resume failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"code": errcode.SystemError, "message": "internal error"})
		return
	}

	content := json.RawMessage("{}")
	if len(record.Content) > 0 {
		content = json.RawMessage(record.Content)
	}

	c.JSON(http.StatusOK, gin.H{
		"code": errcode.OK,
		"data": gin.H{
			"id":      record.ID,
			"user_id": record.UserID,
			"title":   record.Title,
			"content": content,
		},
	})
}
