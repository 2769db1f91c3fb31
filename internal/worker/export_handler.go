package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"talentbridge/internal/database"
	"talentbridge/internal/errcode"
	"talentbridge/internal/pdf"
	"talentbridge/internal/storage"
	"talentbridge/internal/tasks"
)

// ExportTaskHandler 负责消费简历 PDF 导出任务。
type ExportTaskHandler struct {
	db                 *gorm.DB
	storage            *storage.Client
	redisClient        *redis.Client
	logger             *slog.Logger
	resumesBucket      string
	internalSecret     string
	internalAPIBaseURL string
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	resumesBucket string,
	internalSecret string,
	internalAPIBaseURL string,
) *ExportTaskHandler {
	return &ExportTaskHandler{
		db:                 db,
		storage:            storageClient,
		redisClient:        redisClient,
		logger:             logger,
		resumesBucket:      resumesBucket,
		internalSecret:     internalSecret,
		internalAPIBaseURL: strings.TrimRight(strings.TrimSpace(internalAPIBaseURL), "/"),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.ResumeExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("resume_id", int(payload.ResumeID)),
	)
	log.Info("starting resume pdf export task")

	var record database.Resume
	if err := h.db.WithContext(ctx).First(&record, payload.ResumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("resume not found, skipping task")
			return nil
		}
		log.Error("query resume failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(record.UserID)))

	// 最后一次重试仍失败时收敛状态并通知前端，避免 pending 悬挂。
	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		if err := h.db.WithContext(ctx).Model(&record).Update("pdf_status", database.PdfStatusFailed).Error; err != nil {
			log.Error("mark pdf failed status failed", slog.Any("error", err))
		}
		notify := ResumeExportNotifyMessage{
			Type:          "resume_export",
			Status:        "error",
			ResumeID:      record.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishNotify(ctx, h.redisClient, record.UserID, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	data, err := fetchRenderData(ctx, h.internalAPIBaseURL, record.ID, h.internalSecret, payload.CorrelationID)
	if err != nil {
		log.Error("fetch render data failed", slog.Any("error", err))
		return err
	}

	htmlContent, err := renderResumeHTML(data.Content)
	if err != nil {
		log.Error("render resume html failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := pdf.FromHTML(ctx, htmlContent)
	if err != nil {
		log.Error("generate pdf failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("generated/%d/%s.pdf", record.UserID, uuid.NewString())
	if _, err := h.storage.PutObject(ctx, h.resumesBucket, objectName, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf failed", slog.Any("error", err))
		return err
	}

	previousKey := record.PdfObjectKey
	update := map[string]any{
		"pdf_object_key": objectName,
		"pdf_status":     database.PdfStatusReady,
	}
	if err := h.db.WithContext(ctx).Model(&record).Updates(update).Error; err != nil {
		log.Error("update resume failed", slog.Any("error", err))
		return err
	}

	// 旧导出已被取代，清掉节省空间。删除失败不影响任务结果。
	if previousKey != "" && previousKey != objectName {
		if err := h.storage.DeleteObject(ctx, h.resumesBucket, previousKey); err != nil {
			log.Warn("delete stale pdf failed", slog.Any("error", err))
		}
	}

	notify := ResumeExportNotifyMessage{
		Type:          "resume_export",
		Status:        "completed",
		ResumeID:      record.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := publishNotify(ctx, h.redisClient, record.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("resume pdf export task completed")
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
