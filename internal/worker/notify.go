package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 字段名与前端解析保持一致。

// ResumeExportNotifyMessage 通知一次 PDF 导出的结果。
type ResumeExportNotifyMessage struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	ResumeID      uint   `json:"resume_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// AchievementNotifyMessage 通知一枚新到账的成就。
type AchievementNotifyMessage struct {
	Type          string `json:"type"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	XP            int    `json:"xp"`
	Level         int    `json:"level"`
	CorrelationID string `json:"correlation_id"`
}

// publishNotify 将消息发布到用户的通知频道。
func publishNotify(ctx context.Context, redisClient redis.UniversalClient, userID uint, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
