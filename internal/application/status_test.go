package application

import "testing"

func TestCanTransitionForwardOnly(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusApplied, StatusInReview, true},
		{StatusApplied, StatusInterview, true},
		{StatusInReview, StatusOffer, true},
		{StatusInterview, StatusInReview, false},
		{StatusOffer, StatusApplied, false},
		{StatusApplied, StatusApplied, false},
		{StatusInterview, StatusRejected, true},
		{StatusOffer, StatusRejected, true},
		{StatusRejected, StatusInReview, false},
		{StatusWithdrawn, StatusOffer, false},
		{StatusApplied, "frozen", false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestWithdraw(t *testing.T) {
	to, changed, ok := Withdraw(StatusInterview)
	if !ok || !changed || to != StatusWithdrawn {
		t.Errorf("Withdraw(interview) = %s, %v, %v", to, changed, ok)
	}

	to, changed, ok = Withdraw(StatusWithdrawn)
	if !ok || changed || to != StatusWithdrawn {
		t.Errorf("withdrawing twice must be a no-op: %s, %v, %v", to, changed, ok)
	}

	if _, _, ok := Withdraw(StatusRejected); ok {
		t.Error("a rejected application cannot be withdrawn")
	}
}
