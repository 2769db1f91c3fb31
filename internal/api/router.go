package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"talentbridge/internal/api/middleware"
	"talentbridge/internal/config"
	"talentbridge/internal/metrics"
)

// NewRouter 构建 Gin 路由引擎：健康检查、指标端点与通用中间件。
func NewRouter(_ *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
