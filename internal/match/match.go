// Package match scores how well a student's skill set covers a job's
// required skills. Plain set overlap, exact string matching.
package match

// Score returns |required ∩ userSkills| / |required| × 100, truncated to an
// integer. An empty required list scores 0.
func Score(required, userSkills []string) int {
	if len(required) == 0 {
		return 0
	}

	owned := make(map[string]struct{}, len(userSkills))
	for _, s := range userSkills {
		owned[s] = struct{}{}
	}

	matched := 0
	seen := make(map[string]struct{}, len(required))
	for _, s := range required {
		// 重复的要求技能只计一次。
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := owned[s]; ok {
			matched++
		}
	}

	return matched * 100 / len(seen)
}
