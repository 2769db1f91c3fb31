package resume

import (
	"fmt"

	"github.com/google/uuid"
)

// Content 表示存储在简历 Content(JSONB) 中的结构化数据。
type Content struct {
	Basics     Basics       `json:"basics"`
	Education  []Education  `json:"education"`
	Experience []Experience `json:"experience"`
	Skills     SkillGroups  `json:"skills"`
	Projects   []Project    `json:"projects"`
}

// Basics 是简历头部的基本信息块。
type Basics struct {
	FullName string `json:"full_name"`
	Headline string `json:"headline"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Summary  string `json:"summary"`
	Website  string `json:"website"`
}

// Education 是一条教育经历。ID 在一份简历内唯一。
type Education struct {
	ID        string `json:"id"`
	School    string `json:"school"`
	Degree    string `json:"degree"`
	Field     string `json:"field"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Current   bool   `json:"current"`
	GPA       string `json:"gpa,omitempty"`
}

// Experience 是一条工作经历。ID 在一份简历内唯一。
type Experience struct {
	ID          string `json:"id"`
	Company     string `json:"company"`
	Position    string `json:"position"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

// SkillGroups 按类别组织技能条目。
type SkillGroups struct {
	Technical      []string `json:"technical"`
	Soft           []string `json:"soft"`
	Languages      []string `json:"languages"`
	Certifications []string `json:"certifications"`
}

// Project 是一条项目经历。
type Project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	URL          string   `json:"url,omitempty"`
	Technologies []string `json:"technologies"`
}

// Normalize 落实内容不变量：
//   - 空的条目 ID 自动分配
//   - current=true 的经历清空结束日期
//   - 技能列表去重（区分大小写）
func (c *Content) Normalize() {
	for i := range c.Education {
		if c.Education[i].ID == "" {
			c.Education[i].ID = uuid.NewString()
		}
		if c.Education[i].Current {
			c.Education[i].EndDate = ""
		}
	}
	for i := range c.Experience {
		if c.Experience[i].ID == "" {
			c.Experience[i].ID = uuid.NewString()
		}
		if c.Experience[i].Current {
			c.Experience[i].EndDate = ""
		}
	}
	for i := range c.Projects {
		if c.Projects[i].ID == "" {
			c.Projects[i].ID = uuid.NewString()
		}
	}

	c.Skills.Technical = Dedupe(c.Skills.Technical)
	c.Skills.Soft = Dedupe(c.Skills.Soft)
	c.Skills.Languages = Dedupe(c.Skills.Languages)
	c.Skills.Certifications = Dedupe(c.Skills.Certifications)
}

// Validate 检查条目 ID 在各自列表内唯一。
func (c *Content) Validate() error {
	if err := uniqueIDs("education", eduIDs(c.Education)); err != nil {
		return err
	}
	if err := uniqueIDs("experience", expIDs(c.Experience)); err != nil {
		return err
	}
	return uniqueIDs("projects", projIDs(c.Projects))
}

func eduIDs(entries []Education) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func expIDs(entries []Experience) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func projIDs(entries []Project) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func uniqueIDs(section string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate %s entry id %q", section, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
