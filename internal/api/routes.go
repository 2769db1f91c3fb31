package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"talentbridge/internal/ai"
	"talentbridge/internal/api/middleware"
	"talentbridge/internal/auth"
	"talentbridge/internal/config"
	"talentbridge/internal/database"
	"talentbridge/internal/github"
	"talentbridge/internal/storage"
)

const pdfDownloadLinkTTL = 15 * time.Minute

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	githubClient *github.Client,
	aiClient *ai.Client,
) {
	origins := cfg.API.Origins()
	router.Use(
		middleware.SlogLoggerMiddleware(logger),
		middleware.CORS(origins),
	)

	authHandler := NewAuthHandler(db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL(), cfg.Auth.CookieDomain)
	profileHandler := NewProfileHandler(db, githubClient, asynqClient, logger)
	resumeHandler := NewResumeHandler(db, storageClient, asynqClient, cfg.MinIO.ResumesBucket, pdfDownloadLinkTTL, logger)
	jobHandler := NewJobHandler(db, asynqClient, logger)
	uploadHandler := NewUploadHandler(db, storageClient, cfg.Clamd.Addr,
		cfg.MinIO.AvatarsBucket, cfg.MinIO.LogosBucket, cfg.MinIO.ResumesBucket, logger)
	aiHandler := NewAIHandler(aiClient, redisClient, logger, cfg.API.AIRateLimitPerHour)
	wsHandler := NewNotifyHandler(redisClient, authService, logger, origins)
	internalHandler := NewInternalHandler(db, logger)

	authMiddleware := middleware.AuthMiddleware(authService)
	studentOnly := middleware.RequireRole(database.RoleStudent)
	employerOnly := middleware.RequireRole(database.RoleEmployer)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/password", authMiddleware, authHandler.ChangePassword)
		}

		onboardingGroup := v1.Group("/onboarding")
		onboardingGroup.Use(authMiddleware)
		{
			onboardingGroup.GET("", profileHandler.GetOnboardingStatus)
			onboardingGroup.PUT("/step", profileHandler.SetOnboardingStep)
			onboardingGroup.POST("/advance", profileHandler.AdvanceOnboarding)
			onboardingGroup.POST("/retreat", profileHandler.RetreatOnboarding)
		}

		profileGroup := v1.Group("/profiles")
		profileGroup.Use(authMiddleware)
		{
			studentGroup := profileGroup.Group("/student")
			studentGroup.Use(studentOnly)
			{
				studentGroup.GET("", profileHandler.GetStudentProfile)
				studentGroup.PUT("", profileHandler.UpdateStudentProfile)
				studentGroup.POST("/skills", profileHandler.AddSkill)
				studentGroup.POST("/github", profileHandler.ConnectGithub)
			}

			employerGroup := profileGroup.Group("/employer")
			employerGroup.Use(employerOnly)
			{
				employerGroup.GET("", profileHandler.GetEmployerProfile)
				employerGroup.PUT("", profileHandler.UpdateEmployerProfile)
			}
		}

		v1.GET("/achievements", authMiddleware, profileHandler.ListAchievements)

		resumeGroup := v1.Group("/resumes")
		resumeGroup.Use(authMiddleware, studentOnly)
		{
			resumeGroup.GET("", resumeHandler.List)
			resumeGroup.POST("", resumeHandler.Create)
			resumeGroup.GET("/:id", resumeHandler.Get)
			resumeGroup.PUT("/:id", resumeHandler.Update)
			resumeGroup.DELETE("/:id", resumeHandler.Delete)
			resumeGroup.POST("/:id/primary", resumeHandler.SetPrimary)
			resumeGroup.POST("/:id/export", resumeHandler.Export)
			resumeGroup.GET("/:id/download-link", resumeHandler.DownloadLink)
		}

		jobGroup := v1.Group("/jobs")
		{
			jobGroup.GET("", jobHandler.List)
			jobGroup.GET("/recommended", authMiddleware, studentOnly, jobHandler.Recommended)
			jobGroup.GET("/:id", jobHandler.Get)

			jobGroup.POST("", authMiddleware, employerOnly, jobHandler.Create)
			jobGroup.PUT("/:id", authMiddleware, employerOnly, jobHandler.Update)
			jobGroup.POST("/:id/close", authMiddleware, employerOnly, jobHandler.Close)
			jobGroup.GET("/:id/applications", authMiddleware, employerOnly, jobHandler.ListJobApplications)
			jobGroup.POST("/:id/apply", authMiddleware, studentOnly, jobHandler.Apply)
		}
		v1.GET("/employer/jobs", authMiddleware, employerOnly, jobHandler.ListOwn)

		applicationGroup := v1.Group("/applications")
		applicationGroup.Use(authMiddleware)
		{
			applicationGroup.GET("", studentOnly, jobHandler.ListApplications)
			applicationGroup.POST("/:id/withdraw", studentOnly, jobHandler.Withdraw)
			applicationGroup.PUT("/:id/status", employerOnly, jobHandler.UpdateApplicationStatus)
		}

		uploadGroup := v1.Group("/uploads")
		uploadGroup.Use(authMiddleware)
		{
			uploadGroup.POST("/avatar", studentOnly, uploadHandler.UploadAvatar)
			uploadGroup.POST("/logo", employerOnly, uploadHandler.UploadLogo)
			uploadGroup.POST("/resume-file", studentOnly, uploadHandler.UploadResumeFile)
		}

		v1.POST("/ai/assist", authMiddleware, aiHandler.Assist)

		internalGroup := v1.Group("/internal")
		internalGroup.Use(middleware.InternalSecretMiddleware(cfg.Worker.InternalSecret))
		{
			internalGroup.GET("/resumes/:id/render-data", internalHandler.GetResumeRenderData)
		}
	}
}
