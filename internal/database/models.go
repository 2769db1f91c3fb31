package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role 与 Tier 的合法取值。账号在注册时即确定角色。
const (
	RoleStudent  = "student"
	RoleEmployer = "employer"

	TierFree    = "free"
	TierPremium = "premium"
)

// User 表示系统中的账号信息，角色与订阅档位挂在账号上。
type User struct {
	gorm.Model
	Username       string `gorm:"uniqueIndex;size:64"`
	PasswordHash   string `gorm:"size:255"`
	Role           string `gorm:"size:16;index"`
	Tier           string `gorm:"size:16;default:free"`
	OnboardingStep string `gorm:"size:32"`

	StudentProfile  *StudentProfile  `gorm:"constraint:OnDelete:CASCADE"`
	EmployerProfile *EmployerProfile `gorm:"constraint:OnDelete:CASCADE"`
	Resumes         []Resume         `gorm:"constraint:OnDelete:CASCADE"`
	Achievements    []Achievement    `gorm:"constraint:OnDelete:CASCADE"`
}

// StudentProfile 是学生侧的资料。首次访问引导流程时惰性创建。
// Skills/SocialLinks/GithubData 以 JSONB 存储。
type StudentProfile struct {
	gorm.Model
	UserID         uint           `gorm:"uniqueIndex"`
	FullName       string         `gorm:"size:128"`
	Bio            string         `gorm:"size:2048"`
	Education      string         `gorm:"size:512"`
	Skills         datatypes.JSON `gorm:"type:jsonb"`
	SocialLinks    datatypes.JSON `gorm:"type:jsonb"`
	AvatarURL      string         `gorm:"size:512"`
	ResumeFileURL  string         `gorm:"size:512"`
	GithubUsername string         `gorm:"size:64"`
	GithubData     datatypes.JSON `gorm:"type:jsonb"`
	Level          int            `gorm:"default:1"`
	XP             int            `gorm:"default:0"`
}

// EmployerProfile 是雇主侧的公司资料。
type EmployerProfile struct {
	gorm.Model
	UserID       uint   `gorm:"uniqueIndex"`
	CompanyName  string `gorm:"size:128"`
	Description  string `gorm:"size:4096"`
	Industry     string `gorm:"size:64"`
	CompanySize  string `gorm:"size:32"`
	Website      string `gorm:"size:255"`
	ContactEmail string `gorm:"size:255"`
	LogoURL      string `gorm:"size:512"`
}

// PDF 导出状态，由 API 置 pending、worker 收敛到 ready/failed。
const (
	PdfStatusPending = "pending"
	PdfStatusReady   = "ready"
	PdfStatusFailed  = "failed"
)

// Resume 表示一份结构化简历。Content 为 JSONB，结构见 internal/resume。
// 每个用户至多一份 IsPrimary=true，由 SetPrimary 的事务保证。
type Resume struct {
	gorm.Model
	UserID       uint           `gorm:"index"`
	Title        string         `gorm:"size:255"`
	Content      datatypes.JSON `gorm:"type:jsonb"`
	IsPrimary    bool           `gorm:"default:false;index"`
	Version      int            `gorm:"default:1"`
	PdfObjectKey string         `gorm:"size:512"`
	PdfStatus    string         `gorm:"size:32"`
}

// Job 表示雇主发布的职位。RequiredSkills 为 JSONB 字符串数组。
type Job struct {
	gorm.Model
	EmployerID     uint           `gorm:"index"`
	Employer       User           `gorm:"foreignKey:EmployerID;constraint:OnDelete:CASCADE"`
	Title          string         `gorm:"size:255"`
	Description    string         `gorm:"size:8192"`
	Location       string         `gorm:"size:128"`
	JobType        string         `gorm:"size:32"`
	SalaryRange    string         `gorm:"size:64"`
	RequiredSkills datatypes.JSON `gorm:"type:jsonb"`
	Status         string         `gorm:"size:16;default:active;index"`
}

// JobApplication 关联职位与简历，状态迁移规则见 internal/application。
type JobApplication struct {
	gorm.Model
	JobID     uint      `gorm:"index;uniqueIndex:idx_job_applicant"`
	Job       Job       `gorm:"constraint:OnDelete:CASCADE"`
	UserID    uint      `gorm:"index;uniqueIndex:idx_job_applicant"`
	ResumeID  uint      `gorm:"index"`
	Status    string    `gorm:"size:16;default:applied"`
	AppliedAt time.Time ``
}

// Achievement 仅追加，由里程碑事件（如完成引导流程）创建。
type Achievement struct {
	gorm.Model
	UserID      uint   `gorm:"index;uniqueIndex:idx_user_achievement"`
	Code        string `gorm:"size:64;uniqueIndex:idx_user_achievement"`
	Name        string `gorm:"size:128"`
	Description string `gorm:"size:512"`
	XP          int    ``
	EarnedAt    time.Time
}

// AllModels 返回 AutoMigrate 所需的全部模型。
func AllModels() []any {
	return []any{
		&User{},
		&StudentProfile{},
		&EmployerProfile{},
		&Resume{},
		&Job{},
		&JobApplication{},
		&Achievement{},
	}
}
