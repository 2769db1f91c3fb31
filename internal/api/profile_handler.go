package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"talentbridge/internal/api/middleware"
	"talentbridge/internal/database"
	"talentbridge/internal/github"
	"talentbridge/internal/onboarding"
	"talentbridge/internal/resume"
	"talentbridge/internal/tasks"
)

// AchievementOnboardingComplete 是完成引导流程时授予的成就代码。
const AchievementOnboardingComplete = "onboarding_complete"

// ProfileHandler 处理学生/雇主资料、引导流程与成就。
type ProfileHandler struct {
	db           *gorm.DB
	githubClient *github.Client
	asynqClient  *asynq.Client
	logger       *slog.Logger
}

// NewProfileHandler 构造资料处理器。
func NewProfileHandler(db *gorm.DB, githubClient *github.Client, asynqClient *asynq.Client, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		db:           db,
		githubClient: githubClient,
		asynqClient:  asynqClient,
		logger:       logger,
	}
}

type studentProfileResponse struct {
	UserID         uint            `json:"user_id"`
	FullName       string          `json:"full_name"`
	Bio            string          `json:"bio"`
	Education      string          `json:"education"`
	Skills         []string        `json:"skills"`
	SocialLinks    json.RawMessage `json:"social_links"`
	AvatarURL      string          `json:"avatar_url"`
	ResumeFileURL  string          `json:"resume_file_url"`
	GithubUsername string          `json:"github_username"`
	GithubData     json.RawMessage `json:"github_data,omitempty"`
	Level          int             `json:"level"`
	XP             int             `json:"xp"`
}

// GetStudentProfile 返回学生资料；首次访问时惰性创建空资料。
func (h *ProfileHandler) GetStudentProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	profile, err := h.loadOrCreateStudentProfile(c, userID)
	if err != nil {
		logger.Error("load student profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, studentProfileToResponse(profile))
}

type updateStudentProfileRequest struct {
	FullName    *string         `json:"full_name"`
	Bio         *string         `json:"bio"`
	Education   *string         `json:"education"`
	Skills      *[]string       `json:"skills"`
	SocialLinks json.RawMessage `json:"social_links"`
}

// UpdateStudentProfile 部分更新学生资料。Skills 整体替换并去重。
func (h *ProfileHandler) UpdateStudentProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req updateStudentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	profile, err := h.loadOrCreateStudentProfile(c, userID)
	if err != nil {
		logger.Error("load student profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	updates := map[string]any{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Education != nil {
		updates["education"] = *req.Education
	}
	if req.Skills != nil {
		deduped := resume.Dedupe(*req.Skills)
		raw, err := json.Marshal(deduped)
		if err != nil {
			Internal(c, "internal error")
			return
		}
		updates["skills"] = datatypes.JSON(raw)
	}
	if len(req.SocialLinks) > 0 {
		if !json.Valid(req.SocialLinks) {
			BadRequest(c, "social_links must be valid json")
			return
		}
		updates["social_links"] = datatypes.JSON(req.SocialLinks)
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
			logger.Error("update student profile failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	var fresh database.StudentProfile
	if err := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&fresh).Error; err != nil {
		logger.Error("reload student profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, studentProfileToResponse(&fresh))
}

type addSkillRequest struct {
	Skill string `json:"skill" binding:"required,min=1,max=64"`
}

// AddSkill 追加一个技能；与现有条目完全一致（区分大小写）时返回 409。
func (h *ProfileHandler) AddSkill(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req addSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	profile, err := h.loadOrCreateStudentProfile(c, userID)
	if err != nil {
		logger.Error("load student profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	skills := decodeSkills(profile.Skills)
	updated, added := resume.AddSkill(skills, req.Skill)
	if !added {
		Conflict(c, "skill already present")
		return
	}

	raw, err := json.Marshal(updated)
	if err != nil {
		Internal(c, "internal error")
		return
	}
	if err := h.db.WithContext(ctx).Model(profile).Update("skills", datatypes.JSON(raw)).Error; err != nil {
		logger.Error("persist skills failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"skills": updated})
}

type connectGithubRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
}

// ConnectGithub 抓取 GitHub 公共资料并保存快照。
func (h *ProfileHandler) ConnectGithub(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req connectGithubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.String("github_username", req.Username),
	)

	profile, err := h.loadOrCreateStudentProfile(c, userID)
	if err != nil {
		logger.Error("load student profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	result, err := h.githubClient.Fetch(ctx, req.Username)
	if err != nil {
		var upstream *github.UpstreamError
		switch {
		case errors.Is(err, github.ErrNotFound):
			NotFound(c, "github user not found")
		case errors.As(err, &upstream):
			logger.Warn("github upstream error", slog.Int("status", upstream.Status))
			Error(c, http.StatusBadGateway, "github unavailable")
		default:
			logger.Error("github fetch failed", slog.Any("error", err))
			Error(c, http.StatusBadGateway, "github unavailable")
		}
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		Internal(c, "internal error")
		return
	}

	updates := map[string]any{
		"github_username": result.Profile.Login,
		"github_data":     datatypes.JSON(raw),
	}
	if err := h.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		logger.Error("persist github snapshot failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("github profile connected", slog.Int("repo_count", len(result.Repositories)))
	c.JSON(http.StatusOK, result)
}

type employerProfileResponse struct {
	UserID       uint   `json:"user_id"`
	CompanyName  string `json:"company_name"`
	Description  string `json:"description"`
	Industry     string `json:"industry"`
	CompanySize  string `json:"company_size"`
	Website      string `json:"website"`
	ContactEmail string `json:"contact_email"`
	LogoURL      string `json:"logo_url"`
}

// GetEmployerProfile 返回雇主资料；首次访问时惰性创建。
func (h *ProfileHandler) GetEmployerProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	profile, err := h.loadOrCreateEmployerProfile(c, userID)
	if err != nil {
		logger.Error("load employer profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, employerProfileToResponse(profile))
}

type updateEmployerProfileRequest struct {
	CompanyName  *string `json:"company_name"`
	Description  *string `json:"description"`
	Industry     *string `json:"industry"`
	CompanySize  *string `json:"company_size"`
	Website      *string `json:"website"`
	ContactEmail *string `json:"contact_email" binding:"omitempty,email"`
}

// UpdateEmployerProfile 部分更新雇主资料。
func (h *ProfileHandler) UpdateEmployerProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req updateEmployerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	profile, err := h.loadOrCreateEmployerProfile(c, userID)
	if err != nil {
		logger.Error("load employer profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	updates := map[string]any{}
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Industry != nil {
		updates["industry"] = *req.Industry
	}
	if req.CompanySize != nil {
		updates["company_size"] = *req.CompanySize
	}
	if req.Website != nil {
		updates["website"] = *req.Website
	}
	if req.ContactEmail != nil {
		updates["contact_email"] = *req.ContactEmail
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
			logger.Error("update employer profile failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	var fresh database.EmployerProfile
	if err := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&fresh).Error; err != nil {
		logger.Error("reload employer profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, employerProfileToResponse(&fresh))
}

type onboardingStatusResponse struct {
	Role      string   `json:"role"`
	Step      string   `json:"step"`
	Progress  int      `json:"progress"`
	Completed bool     `json:"completed"`
	Steps     []string `json:"steps"`
}

// GetOnboardingStatus 返回当前引导步骤、进度与完整轨道。
func (h *ProfileHandler) GetOnboardingStatus(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, onboardingStatus(user))
}

type setOnboardingStepRequest struct {
	Step string `json:"step" binding:"required"`
}

// SetOnboardingStep 跳转到所属轨道的任意步骤；不校验先后顺序。
func (h *ProfileHandler) SetOnboardingStep(c *gin.Context) {
	var req setOnboardingStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	step := onboarding.Step(req.Step)
	if !onboarding.IsValid(user.Role, step) {
		BadRequest(c, "step does not belong to role track")
		return
	}
	h.persistStep(c, user, step)
}

// AdvanceOnboarding 前进到下一步；在末尾保持不变。
func (h *ProfileHandler) AdvanceOnboarding(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	next, err := onboarding.Next(user.Role, onboarding.Step(user.OnboardingStep))
	if err != nil {
		// 数据中的步骤不在轨道里，重置到起点。
		next = onboarding.First(user.Role)
	}
	h.persistStep(c, user, next)
}

// RetreatOnboarding 回退到上一步；在起点保持不变。
func (h *ProfileHandler) RetreatOnboarding(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	prev, err := onboarding.Prev(user.Role, onboarding.Step(user.OnboardingStep))
	if err != nil {
		prev = onboarding.First(user.Role)
	}
	h.persistStep(c, user, prev)
}

// ListAchievements 返回当前用户按获得时间倒序的成就。
func (h *ProfileHandler) ListAchievements(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	var achievements []database.Achievement
	if err := h.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at DESC").Find(&achievements).Error; err != nil {
		logger.Error("list achievements failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	type achievementResponse struct {
		Code        string `json:"code"`
		Name        string `json:"name"`
		Description string `json:"description"`
		XP          int    `json:"xp"`
		EarnedAt    string `json:"earned_at"`
	}
	out := make([]achievementResponse, 0, len(achievements))
	for _, a := range achievements {
		out = append(out, achievementResponse{
			Code:        a.Code,
			Name:        a.Name,
			Description: a.Description,
			XP:          a.XP,
			EarnedAt:    a.EarnedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"achievements": out})
}

func (h *ProfileHandler) currentUser(c *gin.Context) (*database.User, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		requestLogger(c, h.logger).Error("load user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	return &user, true
}

func (h *ProfileHandler) persistStep(c *gin.Context, user *database.User, step onboarding.Step) {
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(user.ID)),
		slog.String("step", string(step)),
	)

	wasCompleted := onboarding.IsCompleted(onboarding.Step(user.OnboardingStep))

	if err := h.db.WithContext(ctx).Model(user).Update("onboarding_step", string(step)).Error; err != nil {
		logger.Error("persist onboarding step failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	user.OnboardingStep = string(step)

	// 学生首次走到终点时授予成就。授予逻辑幂等，重复入队无副作用。
	if user.Role == database.RoleStudent && !wasCompleted && onboarding.IsCompleted(step) && h.asynqClient != nil {
		task, err := tasks.NewAchievementAwardTask(user.ID, AchievementOnboardingComplete, middleware.GetCorrelationID(c))
		if err != nil {
			logger.Error("build achievement task failed", slog.Any("error", err))
		} else if _, err := h.asynqClient.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
			logger.Error("enqueue achievement task failed", slog.Any("error", err))
		}
	}

	c.JSON(http.StatusOK, onboardingStatus(user))
}

func (h *ProfileHandler) loadOrCreateStudentProfile(c *gin.Context, userID uint) (*database.StudentProfile, error) {
	ctx := c.Request.Context()
	var profile database.StudentProfile
	err := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = database.StudentProfile{
		UserID: userID,
		Skills: datatypes.JSON([]byte("[]")),
		Level:  1,
	}
	if err := h.db.WithContext(ctx).Create(&profile).Error; err != nil {
		// 并发首访可能撞唯一索引，回读一次。
		var existing database.StudentProfile
		if lookupErr := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (h *ProfileHandler) loadOrCreateEmployerProfile(c *gin.Context, userID uint) (*database.EmployerProfile, error) {
	ctx := c.Request.Context()
	var profile database.EmployerProfile
	err := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = database.EmployerProfile{UserID: userID}
	if err := h.db.WithContext(ctx).Create(&profile).Error; err != nil {
		var existing database.EmployerProfile
		if lookupErr := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &profile, nil
}

func onboardingStatus(user *database.User) onboardingStatusResponse {
	step := onboarding.Step(user.OnboardingStep)
	track := onboarding.Steps(user.Role)
	steps := make([]string, 0, len(track))
	for _, s := range track {
		steps = append(steps, string(s))
	}
	return onboardingStatusResponse{
		Role:      user.Role,
		Step:      string(step),
		Progress:  onboarding.Progress(user.Role, step),
		Completed: onboarding.IsCompleted(step),
		Steps:     steps,
	}
}

func studentProfileToResponse(p *database.StudentProfile) studentProfileResponse {
	resp := studentProfileResponse{
		UserID:         p.UserID,
		FullName:       p.FullName,
		Bio:            p.Bio,
		Education:      p.Education,
		Skills:         decodeSkills(p.Skills),
		AvatarURL:      p.AvatarURL,
		ResumeFileURL:  p.ResumeFileURL,
		GithubUsername: p.GithubUsername,
		Level:          p.Level,
		XP:             p.XP,
	}
	if len(p.SocialLinks) > 0 {
		resp.SocialLinks = json.RawMessage(p.SocialLinks)
	} else {
		resp.SocialLinks = json.RawMessage("{}")
	}
	if len(p.GithubData) > 0 {
		resp.GithubData = json.RawMessage(p.GithubData)
	}
	return resp
}

func decodeSkills(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var skills []string
	if err := json.Unmarshal(raw, &skills); err != nil {
		return []string{}
	}
	return skills
}

func employerProfileToResponse(p *database.EmployerProfile) employerProfileResponse {
	return employerProfileResponse{
		UserID:       p.UserID,
		CompanyName:  p.CompanyName,
		Description:  p.Description,
		Industry:     p.Industry,
		CompanySize:  p.CompanySize,
		Website:      p.Website,
		ContactEmail: p.ContactEmail,
		LogoURL:      p.LogoURL,
	}
}
