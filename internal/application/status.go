// Package application holds the job-application status set and its
// transition rules.
package application

// Status values. Review states move strictly forward; withdrawn is reachable
// from any non-terminal state and ends the application.
const (
	StatusApplied   = "applied"
	StatusInReview  = "in_review"
	StatusInterview = "interview"
	StatusOffer     = "offer"
	StatusRejected  = "rejected"
	StatusWithdrawn = "withdrawn"
)

var forwardRank = map[string]int{
	StatusApplied:   0,
	StatusInReview:  1,
	StatusInterview: 2,
	StatusOffer:     3,
}

// IsValid reports whether s is a known status.
func IsValid(s string) bool {
	switch s {
	case StatusApplied, StatusInReview, StatusInterview, StatusOffer, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s.
func IsTerminal(s string) bool {
	return s == StatusRejected || s == StatusWithdrawn
}

// CanTransition reports whether from → to is a legal employer-side move:
// strictly forward through the review pipeline, or rejected from any
// non-terminal state. Withdrawal is the applicant's move, see Withdraw.
func CanTransition(from, to string) bool {
	if !IsValid(from) || !IsValid(to) || IsTerminal(from) {
		return false
	}
	if to == StatusRejected {
		return true
	}
	fromRank, okFrom := forwardRank[from]
	toRank, okTo := forwardRank[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank > fromRank
}

// Withdraw resolves the applicant-side withdrawal. Withdrawing an already
// withdrawn application is a no-op; any other terminal state refuses.
func Withdraw(from string) (to string, changed bool, ok bool) {
	switch {
	case from == StatusWithdrawn:
		return StatusWithdrawn, false, true
	case IsTerminal(from):
		return from, false, false
	case IsValid(from):
		return StatusWithdrawn, true, true
	default:
		return from, false, false
	}
}
