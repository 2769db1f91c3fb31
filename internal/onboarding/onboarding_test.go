package onboarding

import (
	"testing"

	"talentbridge/internal/database"
)

func TestProgressStudentTrack(t *testing.T) {
	cases := []struct {
		step Step
		want int
	}{
		{StepBasicInfo, 14},
		{StepProfilePicture, 29},
		{StepGithub, 43},
		{StepLinkedin, 57},
		{StepResume, 71},
		{StepSkills, 86},
		{StepCompleted, 100},
	}

	for _, tc := range cases {
		if got := Progress(database.RoleStudent, tc.step); got != tc.want {
			t.Errorf("Progress(student, %s) = %d, want %d", tc.step, got, tc.want)
		}
	}
}

func TestProgressEmployerTrack(t *testing.T) {
	cases := []struct {
		step Step
		want int
	}{
		{StepCompanyInfo, 20},
		{StepCompanyLogo, 40},
		{StepCompanyDetails, 60},
		{StepContactInfo, 80},
		{StepCompleted, 100},
	}

	for _, tc := range cases {
		if got := Progress(database.RoleEmployer, tc.step); got != tc.want {
			t.Errorf("Progress(employer, %s) = %d, want %d", tc.step, got, tc.want)
		}
	}
}

func TestProgressUnknownStep(t *testing.T) {
	if got := Progress(database.RoleStudent, Step("nope")); got != 0 {
		t.Errorf("Progress for unknown step = %d, want 0", got)
	}
	if got := Progress("robot", StepBasicInfo); got != 0 {
		t.Errorf("Progress for unknown role = %d, want 0", got)
	}
}

func TestNextPrevStayAtEnds(t *testing.T) {
	next, err := Next(database.RoleStudent, StepCompleted)
	if err != nil || next != StepCompleted {
		t.Errorf("Next(completed) = %s, %v; want completed, nil", next, err)
	}

	prev, err := Prev(database.RoleStudent, StepBasicInfo)
	if err != nil || prev != StepBasicInfo {
		t.Errorf("Prev(basic_info) = %s, %v; want basic_info, nil", prev, err)
	}

	next, err = Next(database.RoleEmployer, StepCompanyInfo)
	if err != nil || next != StepCompanyLogo {
		t.Errorf("Next(company_info) = %s, %v; want company_logo, nil", next, err)
	}

	if _, err := Next(database.RoleEmployer, StepGithub); err == nil {
		t.Error("Next with a step from the other track should fail")
	}
}

func TestIsValidCrossTrack(t *testing.T) {
	if IsValid(database.RoleEmployer, StepGithub) {
		t.Error("github is not an employer step")
	}
	if !IsValid(database.RoleStudent, StepGithub) {
		t.Error("github is a student step")
	}
	if !IsValid(database.RoleEmployer, StepCompleted) {
		t.Error("completed terminates every track")
	}
}
