package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"talentbridge/internal/api/middleware"
	"talentbridge/internal/application"
	"talentbridge/internal/database"
	"talentbridge/internal/match"
	"talentbridge/internal/tasks"
)

// Job 状态。
const (
	JobStatusActive = "active"
	JobStatusClosed = "closed"
)

const recommendedJobPool = 3

// AchievementFirstApplication 是首次投递职位时授予的成就代码。
const AchievementFirstApplication = "first_application"

// JobHandler 处理职位发布、浏览、推荐与投递。
type JobHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	logger      *slog.Logger
}

// NewJobHandler 构造职位处理器。
func NewJobHandler(db *gorm.DB, asynqClient *asynq.Client, logger *slog.Logger) *JobHandler {
	return &JobHandler{db: db, asynqClient: asynqClient, logger: logger}
}

type jobRequest struct {
	Title          string   `json:"title" binding:"required,min=1,max=255"`
	Description    string   `json:"description" binding:"required"`
	Location       string   `json:"location" binding:"max=128"`
	JobType        string   `json:"job_type" binding:"omitempty,oneof=full_time part_time internship contract"`
	SalaryRange    string   `json:"salary_range" binding:"max=64"`
	RequiredSkills []string `json:"required_skills"`
}

type jobResponse struct {
	ID             uint     `json:"id"`
	EmployerID     uint     `json:"employer_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Location       string   `json:"location"`
	JobType        string   `json:"job_type"`
	SalaryRange    string   `json:"salary_range"`
	RequiredSkills []string `json:"required_skills"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"created_at"`
	MatchScore     *int     `json:"match_score,omitempty"`
}

// Create 发布职位，仅雇主可用。
func (h *JobHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("employer_id", uint64(userID)))

	skills, err := encodeSkillList(req.RequiredSkills)
	if err != nil {
		Internal(c, "internal error")
		return
	}

	job := database.Job{
		EmployerID:     userID,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		JobType:        req.JobType,
		SalaryRange:    req.SalaryRange,
		RequiredSkills: skills,
		Status:         JobStatusActive,
	}
	if err := h.db.WithContext(ctx).Create(&job).Error; err != nil {
		logger.Error("create job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("job created", slog.Uint64("job_id", uint64(job.ID)))
	c.JSON(http.StatusCreated, toJobResponse(&job, nil))
}

// Update 修改职位，仅属主雇主可用。
func (h *JobHandler) Update(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("job_id", uint64(job.ID)))

	skills, err := encodeSkillList(req.RequiredSkills)
	if err != nil {
		Internal(c, "internal error")
		return
	}

	updates := map[string]any{
		"title":           req.Title,
		"description":     req.Description,
		"location":        req.Location,
		"job_type":        req.JobType,
		"salary_range":    req.SalaryRange,
		"required_skills": skills,
	}
	if err := h.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		logger.Error("update job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var fresh database.Job
	if err := h.db.WithContext(ctx).First(&fresh, job.ID).Error; err != nil {
		logger.Error("reload job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toJobResponse(&fresh, nil))
}

// Close 下架职位。已关闭的职位不再接受投递。
func (h *JobHandler) Close(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("job_id", uint64(job.ID)))

	if err := h.db.WithContext(ctx).Model(job).Update("status", JobStatusClosed).Error; err != nil {
		logger.Error("close job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	job.Status = JobStatusClosed
	c.JSON(http.StatusOK, toJobResponse(job, nil))
}

// ListOwn 返回雇主自己发布的全部职位。
func (h *JobHandler) ListOwn(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("employer_id", uint64(userID)))

	var jobs []database.Job
	if err := h.db.WithContext(ctx).Where("employer_id = ?", userID).Order("created_at DESC").Find(&jobs).Error; err != nil {
		logger.Error("list own jobs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": toJobResponses(jobs)})
}

// List 返回所有在招职位，按发布时间倒序。
func (h *JobHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger)

	var jobs []database.Job
	if err := h.db.WithContext(ctx).Where("status = ?", JobStatusActive).Order("created_at DESC").Find(&jobs).Error; err != nil {
		logger.Error("list jobs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": toJobResponses(jobs)})
}

// Get 返回单个职位详情。
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	var job database.Job
	if err := h.db.WithContext(c.Request.Context()).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		requestLogger(c, h.logger).Error("load job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toJobResponse(&job, nil))
}

// Recommended 对最近发布的在招职位按技能匹配度打分，得分高者靠前。
// 匹配度 = 命中的要求技能数 / 要求技能总数 × 100，向下取整。
func (h *JobHandler) Recommended(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	var profile database.StudentProfile
	userSkills := []string{}
	if err := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err == nil {
		userSkills = decodeSkills(profile.Skills)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("load student profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var jobs []database.Job
	if err := h.db.WithContext(ctx).
		Where("status = ?", JobStatusActive).
		Order("created_at DESC").
		Limit(recommendedJobPool).
		Find(&jobs).Error; err != nil {
		logger.Error("load recent jobs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	scored := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		score := match.Score(decodeSkills(jobs[i].RequiredSkills), userSkills)
		scored = append(scored, toJobResponse(&jobs[i], &score))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].MatchScore > *scored[j].MatchScore
	})

	c.JSON(http.StatusOK, gin.H{"jobs": scored})
}

type applyRequest struct {
	ResumeID uint `json:"resume_id"`
}

type applicationResponse struct {
	ID        uint   `json:"id"`
	JobID     uint   `json:"job_id"`
	ResumeID  uint   `json:"resume_id"`
	Status    string `json:"status"`
	AppliedAt string `json:"applied_at"`
}

// Apply 投递职位。未指定简历时使用主简历；对同一职位重复投递返回 409。
func (h *JobHandler) Apply(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}
	// 请求体可为空，空体表示使用主简历。
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("job_id", jobID),
	)

	var job database.Job
	if err := h.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		logger.Error("load job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if job.Status != JobStatusActive {
		Conflict(c, "job is no longer accepting applications")
		return
	}

	var selected database.Resume
	if req.ResumeID != 0 {
		if err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", req.ResumeID, userID).First(&selected).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				NotFound(c, "resume not found")
				return
			}
			logger.Error("load resume failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	} else {
		if err := h.db.WithContext(ctx).Where("user_id = ? AND is_primary = ?", userID, true).First(&selected).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				BadRequest(c, "no primary resume; create a resume first")
				return
			}
			logger.Error("load primary resume failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	var existing database.JobApplication
	if err := h.db.WithContext(ctx).Where("job_id = ? AND user_id = ?", jobID, userID).First(&existing).Error; err == nil {
		Conflict(c, "already applied to this job")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("check existing application failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	record := database.JobApplication{
		JobID:     uint(jobID),
		UserID:    userID,
		ResumeID:  selected.ID,
		Status:    application.StatusApplied,
		AppliedAt: time.Now().UTC(),
	}
	if err := h.db.WithContext(ctx).Create(&record).Error; err != nil {
		// 并发重复投递会命中唯一索引。
		logger.Warn("create application failed", slog.Any("error", err))
		Conflict(c, "already applied to this job")
		return
	}

	// 首次投递授予成就。授予逻辑幂等，多次入队无副作用。
	if h.asynqClient != nil {
		task, err := tasks.NewAchievementAwardTask(userID, AchievementFirstApplication, middleware.GetCorrelationID(c))
		if err != nil {
			logger.Error("build achievement task failed", slog.Any("error", err))
		} else if _, err := h.asynqClient.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
			logger.Error("enqueue achievement task failed", slog.Any("error", err))
		}
	}

	logger.Info("application created", slog.Uint64("application_id", uint64(record.ID)))
	c.JSON(http.StatusCreated, toApplicationResponse(&record))
}

// ListApplications 返回当前学生的投递记录。
func (h *JobHandler) ListApplications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	var records []database.JobApplication
	if err := h.db.WithContext(ctx).Preload("Job").Where("user_id = ?", userID).Order("applied_at DESC").Find(&records).Error; err != nil {
		logger.Error("list applications failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	type entry struct {
		applicationResponse
		JobTitle  string `json:"job_title"`
		JobStatus string `json:"job_status"`
	}
	out := make([]entry, 0, len(records))
	for _, r := range records {
		out = append(out, entry{
			applicationResponse: toApplicationResponse(&r),
			JobTitle:            r.Job.Title,
			JobStatus:           r.Job.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"applications": out})
}

// Withdraw 撤回投递。已撤回的投递再次撤回是幂等的；其余终态拒绝。
func (h *JobHandler) Withdraw(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	applicationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid application id")
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("application_id", applicationID),
	)

	var record database.JobApplication
	if err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", applicationID, userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "application not found")
			return
		}
		logger.Error("load application failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	to, changed, ok := application.Withdraw(record.Status)
	if !ok {
		Conflict(c, "application is already in a terminal state")
		return
	}
	if changed {
		if err := h.db.WithContext(ctx).Model(&record).Update("status", to).Error; err != nil {
			logger.Error("withdraw application failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
		record.Status = to
	}

	c.JSON(http.StatusOK, toApplicationResponse(&record))
}

// ListJobApplications 返回某职位收到的投递，仅属主雇主可见。
func (h *JobHandler) ListJobApplications(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(slog.Uint64("job_id", uint64(job.ID)))

	var records []database.JobApplication
	if err := h.db.WithContext(ctx).Where("job_id = ?", job.ID).Order("applied_at DESC").Find(&records).Error; err != nil {
		logger.Error("list job applications failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	type entry struct {
		applicationResponse
		ApplicantID uint `json:"applicant_id"`
	}
	out := make([]entry, 0, len(records))
	for _, r := range records {
		out = append(out, entry{applicationResponse: toApplicationResponse(&r), ApplicantID: r.UserID})
	}
	c.JSON(http.StatusOK, gin.H{"applications": out})
}

type updateApplicationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateApplicationStatus 雇主推进投递状态。只允许沿审核流程向前移动，
// 或从任意非终态转为 rejected。
func (h *JobHandler) UpdateApplicationStatus(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	applicationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid application id")
		return
	}
	var req updateApplicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !application.IsValid(req.Status) {
		BadRequest(c, "unknown status")
		return
	}
	if req.Status == application.StatusWithdrawn {
		Forbidden(c, "withdrawal belongs to the applicant")
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.Uint64("employer_id", uint64(userID)),
		slog.Uint64("application_id", applicationID),
	)

	var record database.JobApplication
	if err := h.db.WithContext(ctx).Preload("Job").First(&record, applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "application not found")
			return
		}
		logger.Error("load application failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if record.Job.EmployerID != userID {
		Forbidden(c, "application belongs to another employer's job")
		return
	}

	if !application.CanTransition(record.Status, req.Status) {
		Conflict(c, "illegal status transition")
		return
	}
	if err := h.db.WithContext(ctx).Model(&record).Update("status", req.Status).Error; err != nil {
		logger.Error("update application status failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	record.Status = req.Status

	c.JSON(http.StatusOK, toApplicationResponse(&record))
}

func (h *JobHandler) ownedJob(c *gin.Context) (*database.Job, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid job id")
		return nil, false
	}

	var job database.Job
	if err := h.db.WithContext(c.Request.Context()).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return nil, false
		}
		requestLogger(c, h.logger).Error("load job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	if job.EmployerID != userID {
		Forbidden(c, "job belongs to another employer")
		return nil, false
	}
	return &job, true
}

func encodeSkillList(skills []string) (datatypes.JSON, error) {
	if skills == nil {
		skills = []string{}
	}
	raw, err := json.Marshal(skills)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func toJobResponse(job *database.Job, score *int) jobResponse {
	return jobResponse{
		ID:             job.ID,
		EmployerID:     job.EmployerID,
		Title:          job.Title,
		Description:    job.Description,
		Location:       job.Location,
		JobType:        job.JobType,
		SalaryRange:    job.SalaryRange,
		RequiredSkills: decodeSkills(job.RequiredSkills),
		Status:         job.Status,
		CreatedAt:      job.CreatedAt.UTC().Format(time.RFC3339),
		MatchScore:     score,
	}
}

func toJobResponses(jobs []database.Job) []jobResponse {
	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i], nil))
	}
	return out
}

func toApplicationResponse(r *database.JobApplication) applicationResponse {
	return applicationResponse{
		ID:        r.ID,
		JobID:     r.JobID,
		ResumeID:  r.ResumeID,
		Status:    r.Status,
		AppliedAt: r.AppliedAt.UTC().Format(time.RFC3339),
	}
}
