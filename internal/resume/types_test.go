package resume

import "testing"

func TestNormalizeAssignsEntryIDs(t *testing.T) {
	content := Content{
		Education:  []Education{{School: "MIT"}, {ID: "edu-1", School: "CMU"}},
		Experience: []Experience{{Company: "Acme"}},
		Projects:   []Project{{Name: "thing"}},
	}

	content.Normalize()

	if content.Education[0].ID == "" {
		t.Error("blank education id should be assigned")
	}
	if content.Education[1].ID != "edu-1" {
		t.Errorf("existing id overwritten: %q", content.Education[1].ID)
	}
	if content.Experience[0].ID == "" || content.Projects[0].ID == "" {
		t.Error("blank experience/project ids should be assigned")
	}
}

func TestNormalizeCurrentClearsEndDate(t *testing.T) {
	content := Content{
		Experience: []Experience{
			{ID: "a", Current: true, EndDate: "2025-01"},
			{ID: "b", Current: false, EndDate: "2024-06"},
		},
		Education: []Education{
			{ID: "c", Current: true, EndDate: "2026-06"},
		},
	}

	content.Normalize()

	if content.Experience[0].EndDate != "" {
		t.Error("current experience must not carry an end date")
	}
	if content.Experience[1].EndDate != "2024-06" {
		t.Error("finished experience end date must survive")
	}
	if content.Education[0].EndDate != "" {
		t.Error("current education must not carry an end date")
	}
}

func TestNormalizeDedupesSkillGroups(t *testing.T) {
	content := Content{
		Skills: SkillGroups{
			Technical: []string{"Go", "SQL", "Go"},
			Languages: []string{"English", "english"},
		},
	}

	content.Normalize()

	if len(content.Skills.Technical) != 2 {
		t.Errorf("technical = %v, want 2 entries", content.Skills.Technical)
	}
	if len(content.Skills.Languages) != 2 {
		t.Errorf("languages = %v, case-sensitive dedupe must keep both", content.Skills.Languages)
	}
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	content := Content{
		Education: []Education{{ID: "x"}, {ID: "x"}},
	}
	if err := content.Validate(); err == nil {
		t.Error("duplicate education ids must be rejected")
	}

	content = Content{
		Education:  []Education{{ID: "x"}},
		Experience: []Experience{{ID: "x"}},
	}
	if err := content.Validate(); err != nil {
		t.Errorf("ids only need to be unique within their own list: %v", err)
	}
}

func TestAddSkill(t *testing.T) {
	list := []string{"Go", "SQL"}

	got, ok := AddSkill(list, "Docker")
	if !ok || len(got) != 3 {
		t.Errorf("AddSkill new entry = %v, %v", got, ok)
	}

	got, ok = AddSkill(list, "Go")
	if ok {
		t.Error("exact duplicate must be rejected")
	}
	if len(got) != 2 || got[0] != "Go" || got[1] != "SQL" {
		t.Errorf("list changed on rejected add: %v", got)
	}

	if _, ok := AddSkill(list, "go"); !ok {
		t.Error("matching is case-sensitive, lowercase variant is a new skill")
	}
}
