package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"talentbridge/internal/database"
	"talentbridge/internal/tasks"
)

// 每 250 XP 升一级，1 级起步。
const xpPerLevel = 250

// achievementSpec 描述一枚成就的展示信息与奖励。
type achievementSpec struct {
	Name        string
	Description string
	XP          int
}

// 成就目录。未知代码的任务直接丢弃而不是重试。
var achievementCatalog = map[string]achievementSpec{
	"onboarding_complete": {
		Name:        "Ready to Launch",
		Description: "Completed the onboarding wizard",
		XP:          100,
	},
	"first_application": {
		Name:        "First Step",
		Description: "Submitted the first job application",
		XP:          50,
	},
}

// AchievementTaskHandler 负责消费成就授予任务。
type AchievementTaskHandler struct {
	db          *gorm.DB
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewAchievementTaskHandler 创建任务处理器。
func NewAchievementTaskHandler(db *gorm.DB, redisClient *redis.Client, logger *slog.Logger) *AchievementTaskHandler {
	return &AchievementTaskHandler{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。授予逻辑幂等：同一用户的同一成就
// 只会入账一次，重复投递的任务直接成功返回。
func (h *AchievementTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.AchievementAwardPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("user_id", uint64(payload.UserID)),
		slog.String("code", payload.Code),
	)

	spec, known := achievementCatalog[payload.Code]
	if !known {
		log.Warn("unknown achievement code, dropping task")
		return nil
	}

	var existing database.Achievement
	err := h.db.WithContext(ctx).
		Where("user_id = ? AND code = ?", payload.UserID, payload.Code).
		First(&existing).Error
	if err == nil {
		log.Info("achievement already awarded, skipping")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("check existing achievement failed", slog.Any("error", err))
		return err
	}

	var newLevel int
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := database.Achievement{
			UserID:      payload.UserID,
			Code:        payload.Code,
			Name:        spec.Name,
			Description: spec.Description,
			XP:          spec.XP,
			EarnedAt:    time.Now().UTC(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		var profile database.StudentProfile
		if err := tx.Where("user_id = ?", payload.UserID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 资料尚未创建，XP 留待下次访问时一并展示。
				newLevel = 1
				return nil
			}
			return err
		}

		totalXP := profile.XP + spec.XP
		newLevel = totalXP/xpPerLevel + 1
		return tx.Model(&profile).Updates(map[string]any{
			"xp":    totalXP,
			"level": newLevel,
		}).Error
	})
	if err != nil {
		log.Error("award achievement failed", slog.Any("error", err))
		return err
	}

	notify := AchievementNotifyMessage{
		Type:          "achievement",
		Code:          payload.Code,
		Name:          spec.Name,
		XP:            spec.XP,
		Level:         newLevel,
		CorrelationID: payload.CorrelationID,
	}
	if err := publishNotify(ctx, h.redisClient, payload.UserID, notify); err != nil {
		log.Error("publish achievement notification failed", slog.Any("error", err))
		return err
	}

	log.Info("achievement awarded", slog.Int("xp", spec.XP), slog.Int("level", newLevel))
	return nil
}
