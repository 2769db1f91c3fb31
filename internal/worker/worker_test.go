package worker

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"talentbridge/internal/database"
	"talentbridge/internal/resume"
	"talentbridge/internal/tasks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

func TestRenderResumeHTML_IncludesSections(t *testing.T) {
	content := resume.Content{
		Basics: resume.Basics{
			FullName: "Ada Lovelace",
			Headline: "Software Engineer",
			Email:    "ada@example.com",
		},
		Experience: []resume.Experience{
			{
				ID:        "exp-1",
				Company:   "Analytical Engines Ltd",
				Position:  "Engineer",
				StartDate: "2023-01",
				Current:   true,
			},
		},
		Skills: resume.SkillGroups{
			Technical: []string{"Go", "PostgreSQL"},
		},
	}

	html, err := renderResumeHTML(content)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		"Ada Lovelace",
		"Analytical Engines Ltd",
		"2023-01 – Present",
		"Go, PostgreSQL",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered html missing %q", want)
		}
	}
}

func TestRenderResumeHTML_EscapesMarkup(t *testing.T) {
	content := resume.Content{
		Basics: resume.Basics{
			FullName: `<script>alert("x")</script>`,
		},
	}

	html, err := renderResumeHTML(content)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Fatalf("user input must be escaped in rendered html")
	}
}

func TestAchievementHandler_SecondAwardIsNoOp(t *testing.T) {
	db := newTestDB(t)

	user := database.User{Username: "student", PasswordHash: "x", Role: database.RoleStudent}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	existing := database.Achievement{
		UserID:   user.ID,
		Code:     "onboarding_complete",
		Name:     "Ready to Launch",
		XP:       100,
		EarnedAt: time.Now().UTC(),
	}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("seed achievement: %v", err)
	}

	h := NewAchievementTaskHandler(db, nil, discardLogger())

	task, err := tasks.NewAchievementAwardTask(user.ID, "onboarding_complete", "corr-1")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	// 已授予过的任务直接成功返回，不触碰通知通道。
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("repeat award must be a no-op, got %v", err)
	}

	var count int64
	if err := db.Model(&database.Achievement{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count achievements: %v", err)
	}
	if count != 1 {
		t.Fatalf("achievement must not be duplicated, got %d rows", count)
	}
}

func TestAchievementHandler_UnknownCodeDropped(t *testing.T) {
	db := newTestDB(t)

	h := NewAchievementTaskHandler(db, nil, discardLogger())

	task := asynq.NewTask(tasks.TypeAchievementAward, []byte(`{"user_id":1,"code":"no_such_code"}`))
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unknown code must be dropped without retry, got %v", err)
	}
}
