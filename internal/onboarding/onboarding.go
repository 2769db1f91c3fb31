// Package onboarding models the per-role signup wizard as a linear
// sequence of named steps ending in "completed". The machine trusts
// callers to jump to any step of their own track; it never checks that
// earlier steps were finished, which keeps free back/forward navigation
// working in the client.
package onboarding

import (
	"fmt"

	"talentbridge/internal/database"
)

// Step is a named stage in a role's wizard sequence.
type Step string

// Student track.
const (
	StepBasicInfo      Step = "basic_info"
	StepProfilePicture Step = "profile_picture"
	StepGithub         Step = "github"
	StepLinkedin       Step = "linkedin"
	StepResume         Step = "resume"
	StepSkills         Step = "skills"
)

// Employer track.
const (
	StepCompanyInfo    Step = "company_info"
	StepCompanyLogo    Step = "company_logo"
	StepCompanyDetails Step = "company_details"
	StepContactInfo    Step = "contact_info"
)

// StepCompleted terminates both tracks.
const StepCompleted Step = "completed"

var studentTrack = []Step{
	StepBasicInfo,
	StepProfilePicture,
	StepGithub,
	StepLinkedin,
	StepResume,
	StepSkills,
	StepCompleted,
}

var employerTrack = []Step{
	StepCompanyInfo,
	StepCompanyLogo,
	StepCompanyDetails,
	StepContactInfo,
	StepCompleted,
}

// Steps returns the ordered track for a role, or nil for an unknown role.
func Steps(role string) []Step {
	switch role {
	case database.RoleStudent:
		return studentTrack
	case database.RoleEmployer:
		return employerTrack
	default:
		return nil
	}
}

// First returns the initial step of a role's track.
func First(role string) Step {
	track := Steps(role)
	if len(track) == 0 {
		return ""
	}
	return track[0]
}

// Index returns the zero-based position of step within the role's track,
// or -1 when the step does not belong to the track.
func Index(role string, step Step) int {
	for i, s := range Steps(role) {
		if s == step {
			return i
		}
	}
	return -1
}

// IsValid reports whether step belongs to the role's track.
func IsValid(role string, step Step) bool {
	return Index(role, step) >= 0
}

// Progress computes round(100 * (index+1) / total) for the role's track.
// Unknown steps yield 0.
func Progress(role string, step Step) int {
	track := Steps(role)
	idx := Index(role, step)
	if idx < 0 || len(track) == 0 {
		return 0
	}
	// 整数四舍五入，避免浮点误差。
	return (100*(idx+1) + len(track)/2) / len(track)
}

// Next returns the step after the current one, staying on the terminal step.
func Next(role string, step Step) (Step, error) {
	track := Steps(role)
	idx := Index(role, step)
	if idx < 0 {
		return "", fmt.Errorf("step %q not in %s track", step, role)
	}
	if idx == len(track)-1 {
		return step, nil
	}
	return track[idx+1], nil
}

// Prev returns the step before the current one, staying on the first step.
func Prev(role string, step Step) (Step, error) {
	track := Steps(role)
	idx := Index(role, step)
	if idx < 0 {
		return "", fmt.Errorf("step %q not in %s track", step, role)
	}
	if idx == 0 {
		return step, nil
	}
	return track[idx-1], nil
}

// IsCompleted reports whether the step is the terminal step.
func IsCompleted(step Step) bool {
	return step == StepCompleted
}
