package match

import "testing"

func TestScore(t *testing.T) {
	cases := []struct {
		name     string
		required []string
		skills   []string
		want     int
	}{
		{"two of three", []string{"A", "B", "C"}, []string{"A", "C"}, 66},
		{"full overlap", []string{"Go", "SQL"}, []string{"SQL", "Go", "Docker"}, 100},
		{"no overlap", []string{"Rust"}, []string{"Go"}, 0},
		{"empty required", nil, []string{"Go"}, 0},
		{"empty skills", []string{"Go"}, nil, 0},
		{"case sensitive", []string{"go"}, []string{"Go"}, 0},
		{"duplicate required counted once", []string{"Go", "Go", "SQL"}, []string{"Go"}, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.required, tc.skills); got != tc.want {
				t.Errorf("Score(%v, %v) = %d, want %d", tc.required, tc.skills, got, tc.want)
			}
		})
	}
}
