package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"talentbridge/internal/application"
	"talentbridge/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newJSONContext(t *testing.T, method, target string, payload any, userID uint) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if userID != 0 {
		c.Set("userID", userID)
	}
	return c, w
}

func seedUser(t *testing.T, db *gorm.DB, role string) *database.User {
	t.Helper()
	user := database.User{
		Username:     "user-" + role + "-" + strconv.FormatInt(time.Now().UnixNano(), 36),
		PasswordHash: "irrelevant",
		Role:         role,
		Tier:         database.TierFree,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedResume(t *testing.T, db *gorm.DB, userID uint, primary bool, version int) *database.Resume {
	t.Helper()
	record := database.Resume{
		UserID:    userID,
		Title:     "resume",
		Content:   datatypes.JSON([]byte(`{}`)),
		IsPrimary: primary,
		Version:   version,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	return &record
}

func TestSetPrimary_KeepsSinglePrimary(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)
	first := seedResume(t, db, user.ID, true, 1)
	second := seedResume(t, db, user.ID, false, 1)

	h := NewResumeHandler(db, nil, nil, "resumes", time.Minute, nil)

	c, w := newJSONContext(t, http.MethodPost, "/v1/resumes/2/primary", nil, user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(second.ID), 10)}}
	h.SetPrimary(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&database.Resume{}).Where("user_id = ? AND is_primary = ?", user.ID, true).Count(&count).Error; err != nil {
		t.Fatalf("count primary: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one primary resume, got %d", count)
	}

	var reloaded database.Resume
	if err := db.First(&reloaded, first.ID).Error; err != nil {
		t.Fatalf("reload first: %v", err)
	}
	if reloaded.IsPrimary {
		t.Fatalf("previous primary should have been cleared")
	}
}

func TestUpdateResume_VersionConflict(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)
	record := seedResume(t, db, user.ID, true, 3)

	h := NewResumeHandler(db, nil, nil, "resumes", time.Minute, nil)

	payload := map[string]any{"title": "renamed", "version": 1}
	c, w := newJSONContext(t, http.MethodPut, "/v1/resumes/1", payload, user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(record.ID), 10)}}
	h.Update(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Resume
	if err := db.First(&reloaded, record.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Title != "resume" || reloaded.Version != 3 {
		t.Fatalf("stale write must not modify the record: title=%q version=%d", reloaded.Title, reloaded.Version)
	}
}

func TestUpdateResume_MatchingVersionBumps(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)
	record := seedResume(t, db, user.ID, true, 3)

	h := NewResumeHandler(db, nil, nil, "resumes", time.Minute, nil)

	payload := map[string]any{"title": "renamed", "version": 3}
	c, w := newJSONContext(t, http.MethodPut, "/v1/resumes/1", payload, user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(record.ID), 10)}}
	h.Update(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Resume
	if err := db.First(&reloaded, record.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Title != "renamed" || reloaded.Version != 4 {
		t.Fatalf("expected title=renamed version=4, got title=%q version=%d", reloaded.Title, reloaded.Version)
	}
}

func TestAddSkill_ExactDuplicateConflicts(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)
	profile := database.StudentProfile{
		UserID: user.ID,
		Skills: datatypes.JSON([]byte(`["Go","Docker"]`)),
		Level:  1,
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	h := NewProfileHandler(db, nil, nil, nil)

	c, w := newJSONContext(t, http.MethodPost, "/v1/profiles/student/skills", map[string]string{"skill": "Go"}, user.ID)
	h.AddSkill(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("exact duplicate: expected 409 got %d body=%s", w.Code, w.Body.String())
	}

	// 大小写不同视为不同条目。
	c, w = newJSONContext(t, http.MethodPost, "/v1/profiles/student/skills", map[string]string{"skill": "go"}, user.ID)
	h.AddSkill(c)
	if w.Code != http.StatusOK {
		t.Fatalf("case variant: expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.StudentProfile
	if err := db.Where("user_id = ?", user.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	var skills []string
	if err := json.Unmarshal(reloaded.Skills, &skills); err != nil {
		t.Fatalf("decode skills: %v", err)
	}
	if len(skills) != 3 || skills[2] != "go" {
		t.Fatalf("unexpected skills after add: %v", skills)
	}
}

func TestWithdraw_IdempotentOnWithdrawn(t *testing.T) {
	db := newTestDB(t)
	student := seedUser(t, db, database.RoleStudent)
	employer := seedUser(t, db, database.RoleEmployer)

	job := database.Job{EmployerID: employer.ID, Title: "job", Status: JobStatusActive}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	record := database.JobApplication{
		JobID:     job.ID,
		UserID:    student.ID,
		Status:    application.StatusWithdrawn,
		AppliedAt: time.Now().UTC(),
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	h := NewJobHandler(db, nil, nil)

	c, w := newJSONContext(t, http.MethodPost, "/v1/applications/1/withdraw", nil, student.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(record.ID), 10)}}
	h.Withdraw(c)

	if w.Code != http.StatusOK {
		t.Fatalf("withdrawing a withdrawn application must be a no-op 200, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestWithdraw_RejectedIsTerminal(t *testing.T) {
	db := newTestDB(t)
	student := seedUser(t, db, database.RoleStudent)
	employer := seedUser(t, db, database.RoleEmployer)

	job := database.Job{EmployerID: employer.ID, Title: "job", Status: JobStatusActive}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	record := database.JobApplication{
		JobID:     job.ID,
		UserID:    student.ID,
		Status:    application.StatusRejected,
		AppliedAt: time.Now().UTC(),
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	h := NewJobHandler(db, nil, nil)

	c, w := newJSONContext(t, http.MethodPost, "/v1/applications/1/withdraw", nil, student.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(record.ID), 10)}}
	h.Withdraw(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestApply_SecondApplicationConflicts(t *testing.T) {
	db := newTestDB(t)
	student := seedUser(t, db, database.RoleStudent)
	employer := seedUser(t, db, database.RoleEmployer)
	seedResume(t, db, student.ID, true, 1)

	job := database.Job{EmployerID: employer.ID, Title: "job", Status: JobStatusActive}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	h := NewJobHandler(db, nil, nil)
	jobID := strconv.FormatUint(uint64(job.ID), 10)

	c, w := newJSONContext(t, http.MethodPost, "/v1/jobs/"+jobID+"/apply", nil, student.ID)
	c.Params = gin.Params{{Key: "id", Value: jobID}}
	h.Apply(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("first application: expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	c, w = newJSONContext(t, http.MethodPost, "/v1/jobs/"+jobID+"/apply", nil, student.ID)
	c.Params = gin.Params{{Key: "id", Value: jobID}}
	h.Apply(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("second application: expected 409 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestApply_ClosedJobRefused(t *testing.T) {
	db := newTestDB(t)
	student := seedUser(t, db, database.RoleStudent)
	employer := seedUser(t, db, database.RoleEmployer)
	seedResume(t, db, student.ID, true, 1)

	job := database.Job{EmployerID: employer.ID, Title: "job", Status: JobStatusClosed}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	h := NewJobHandler(db, nil, nil)
	jobID := strconv.FormatUint(uint64(job.ID), 10)

	c, w := newJSONContext(t, http.MethodPost, "/v1/jobs/"+jobID+"/apply", nil, student.ID)
	c.Params = gin.Params{{Key: "id", Value: jobID}}
	h.Apply(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateApplicationStatus_ForwardOnly(t *testing.T) {
	db := newTestDB(t)
	student := seedUser(t, db, database.RoleStudent)
	employer := seedUser(t, db, database.RoleEmployer)

	job := database.Job{EmployerID: employer.ID, Title: "job", Status: JobStatusActive}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	record := database.JobApplication{
		JobID:     job.ID,
		UserID:    student.ID,
		Status:    application.StatusInterview,
		AppliedAt: time.Now().UTC(),
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	h := NewJobHandler(db, nil, nil)
	appID := strconv.FormatUint(uint64(record.ID), 10)

	// 向后移动被拒绝。
	c, w := newJSONContext(t, http.MethodPut, "/v1/applications/"+appID+"/status", map[string]string{"status": application.StatusApplied}, employer.ID)
	c.Params = gin.Params{{Key: "id", Value: appID}}
	h.UpdateApplicationStatus(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("backward move: expected 409 got %d body=%s", w.Code, w.Body.String())
	}

	// 向前移动成功。
	c, w = newJSONContext(t, http.MethodPut, "/v1/applications/"+appID+"/status", map[string]string{"status": application.StatusOffer}, employer.ID)
	c.Params = gin.Params{{Key: "id", Value: appID}}
	h.UpdateApplicationStatus(c)
	if w.Code != http.StatusOK {
		t.Fatalf("forward move: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestOnboardingAdvance_StudentTrackProgress(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)
	if err := db.Model(user).Update("onboarding_step", "resume").Error; err != nil {
		t.Fatalf("set step: %v", err)
	}

	h := NewProfileHandler(db, nil, nil, nil)

	c, w := newJSONContext(t, http.MethodPost, "/v1/onboarding/advance", nil, user.ID)
	h.AdvanceOnboarding(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp onboardingStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Step != "skills" {
		t.Fatalf("expected step skills got %q", resp.Step)
	}
	if resp.Progress != 86 {
		t.Fatalf("expected progress 86 got %d", resp.Progress)
	}
	if resp.Completed {
		t.Fatalf("skills step must not be completed")
	}
}

func TestOnboardingSetStep_ForeignTrackRejected(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)
	if err := db.Model(user).Update("onboarding_step", "basic_info").Error; err != nil {
		t.Fatalf("set step: %v", err)
	}

	h := NewProfileHandler(db, nil, nil, nil)

	c, w := newJSONContext(t, http.MethodPut, "/v1/onboarding/step", map[string]string{"step": "company_info"}, user.ID)
	h.SetOnboardingStep(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetStudentProfile_LazyCreation(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)

	h := NewProfileHandler(db, nil, nil, nil)

	c, w := newJSONContext(t, http.MethodGet, "/v1/profiles/student", nil, user.ID)
	h.GetStudentProfile(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&database.StudentProfile{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected lazily created profile, got %d rows", count)
	}

	// 再次访问不会重复创建。
	c, w = newJSONContext(t, http.MethodGet, "/v1/profiles/student", nil, user.ID)
	h.GetStudentProfile(c)
	if w.Code != http.StatusOK {
		t.Fatalf("second read: expected 200 got %d", w.Code)
	}
	if err := db.Model(&database.StudentProfile{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("recount profiles: %v", err)
	}
	if count != 1 {
		t.Fatalf("profile must not be duplicated, got %d rows", count)
	}
}

func TestRecommended_OrdersByMatchScore(t *testing.T) {
	db := newTestDB(t)
	student := seedUser(t, db, database.RoleStudent)
	employer := seedUser(t, db, database.RoleEmployer)

	profile := database.StudentProfile{
		UserID: student.ID,
		Skills: datatypes.JSON([]byte(`["Go","Redis"]`)),
		Level:  1,
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	jobs := []database.Job{
		{EmployerID: employer.ID, Title: "none", RequiredSkills: datatypes.JSON([]byte(`["Rust"]`)), Status: JobStatusActive},
		{EmployerID: employer.ID, Title: "partial", RequiredSkills: datatypes.JSON([]byte(`["Go","Rust","Kafka"]`)), Status: JobStatusActive},
		{EmployerID: employer.ID, Title: "full", RequiredSkills: datatypes.JSON([]byte(`["Go","Redis"]`)), Status: JobStatusActive},
	}
	for i := range jobs {
		if err := db.Create(&jobs[i]).Error; err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}

	h := NewJobHandler(db, nil, nil)

	c, w := newJSONContext(t, http.MethodGet, "/v1/jobs/recommended", nil, student.ID)
	h.Recommended(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Jobs []jobResponse `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Jobs) != 3 {
		t.Fatalf("expected 3 recommendations got %d", len(resp.Jobs))
	}
	if resp.Jobs[0].Title != "full" || *resp.Jobs[0].MatchScore != 100 {
		t.Fatalf("expected full match first, got %q score=%v", resp.Jobs[0].Title, resp.Jobs[0].MatchScore)
	}
	if resp.Jobs[1].Title != "partial" || *resp.Jobs[1].MatchScore != 33 {
		t.Fatalf("expected truncated partial score 33, got %q score=%v", resp.Jobs[1].Title, resp.Jobs[1].MatchScore)
	}
	if resp.Jobs[2].Title != "none" || *resp.Jobs[2].MatchScore != 0 {
		t.Fatalf("expected zero match last, got %q score=%v", resp.Jobs[2].Title, resp.Jobs[2].MatchScore)
	}
}

func TestCreateResume_FirstBecomesPrimary(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, database.RoleStudent)

	h := NewResumeHandler(db, nil, nil, "resumes", time.Minute, nil)

	// Export/enqueue 不在此测试范围，仅创建。
	c, w := newJSONContext(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "first"}, user.ID)
	h.Create(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var record database.Resume
	if err := db.Where("user_id = ?", user.ID).First(&record).Error; err != nil {
		t.Fatalf("load created resume: %v", err)
	}
	if !record.IsPrimary {
		t.Fatalf("first resume must become primary")
	}

	c, w = newJSONContext(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "second"}, user.ID)
	h.Create(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("second create: expected 201 got %d", w.Code)
	}

	var primaries int64
	if err := db.Model(&database.Resume{}).Where("user_id = ? AND is_primary = ?", user.ID, true).Count(&primaries).Error; err != nil {
		t.Fatalf("count primaries: %v", err)
	}
	if primaries != 1 {
		t.Fatalf("expected one primary after second create, got %d", primaries)
	}
}
