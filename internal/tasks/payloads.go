package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeResumeExport     = "resume:export"
	TypeAchievementAward = "achievement:award"
)

// ResumeExportPayload 描述导出简历 PDF 所需的最小信息。
type ResumeExportPayload struct {
	ResumeID      uint   `json:"resume_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewResumeExportTask 构造一个新的简历 PDF 导出任务。
func NewResumeExportTask(resumeID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ResumeExportPayload{
		ResumeID:      resumeID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResumeExport, payload), nil
}

// AchievementAwardPayload 描述一次里程碑成就授予。
type AchievementAwardPayload struct {
	UserID        uint   `json:"user_id"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewAchievementAwardTask 构造一个新的成就授予任务。
func NewAchievementAwardTask(userID uint, code string, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AchievementAwardPayload{
		UserID:        userID,
		Code:          code,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAchievementAward, payload), nil
}
