package timeofday

// NormalizeAll normalizes entries, dropping blanks and duplicates while
// keeping first-seen order.
func NormalizeAll(entries []string) []string {
	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		n := Normalize(e)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Contains reports whether set holds entry under normalized comparison.
func Contains(set []string, entry string) bool {
	n := Normalize(entry)
	for _, e := range set {
		if Normalize(e) == n {
			return true
		}
	}
	return false
}

// Union returns the normalized entries of a followed by those of b not in a.
func Union(a, b []string) []string {
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return NormalizeAll(all)
}

// Without returns the normalized set minus entry.
func Without(set []string, entry string) []string {
	n := Normalize(entry)
	out := make([]string, 0, len(set))
	for _, e := range NormalizeAll(set) {
		if e != n {
			out = append(out, e)
		}
	}
	return out
}
