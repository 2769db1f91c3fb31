package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"talentbridge/internal/ai"
)

// AIHandler 将简历写作辅助请求代理到生成式后端，并按用户限流。
type AIHandler struct {
	aiClient        *ai.Client
	redis           redis.UniversalClient
	logger          *slog.Logger
	requestsPerHour int
}

// NewAIHandler 构造 AI 辅助处理器。requestsPerHour <= 0 表示不限流。
func NewAIHandler(aiClient *ai.Client, redisClient redis.UniversalClient, logger *slog.Logger, requestsPerHour int) *AIHandler {
	return &AIHandler{
		aiClient:        aiClient,
		redis:           redisClient,
		logger:          logger,
		requestsPerHour: requestsPerHour,
	}
}

type assistRequest struct {
	Prompt string `json:"prompt" binding:"required,min=1,max=8000"`
	Resume string `json:"resume" binding:"max=32000"`
	Action string `json:"action" binding:"omitempty,oneof=improve generate analyze"`
}

// Assist 组装提示词并同步调用生成式后端，返回首个候选文本。
func (h *AIHandler) Assist(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req assistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.String("action", req.Action),
	)

	if h.requestsPerHour > 0 && h.redis != nil {
		key := hourlyRateKey("rate:ai", strconv.FormatUint(uint64(userID), 10))
		count, err := incrWithTTL(ctx, h.redis, key, time.Hour)
		if err != nil {
			logger.Warn("ai rate counter failed", slog.Any("error", err))
		} else if count > int64(h.requestsPerHour) {
			TooManyRequests(c, "rate limit exceeded")
			return
		}
	}

	result, err := h.aiClient.Generate(ctx, ai.AssistRequest{
		Prompt: req.Prompt,
		Resume: req.Resume,
		Action: req.Action,
	})
	if err != nil {
		var genErr *ai.GenerationError
		switch {
		case errors.Is(err, ai.ErrMissingCredential):
			logger.Error("ai credential missing")
			Internal(c, "assistant is not configured")
		case errors.As(err, &genErr):
			logger.Warn("ai generation failed", slog.String("details", genErr.Message))
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "generation failed",
				"details": genErr.Message,
			})
		default:
			logger.Error("ai request failed", slog.Any("error", err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
