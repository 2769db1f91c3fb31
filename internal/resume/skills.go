package resume

// AddSkill appends skill to list unless an identical entry already exists.
// Matching is exact and case-sensitive; on a duplicate the original list is
// returned unchanged and ok is false.
func AddSkill(list []string, skill string) (result []string, ok bool) {
	for _, s := range list {
		if s == skill {
			return list, false
		}
	}
	return append(list, skill), true
}

// Dedupe removes repeated entries (case-sensitive) preserving first-seen order.
func Dedupe(list []string) []string {
	if len(list) == 0 {
		return list
	}
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, s := range list {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
