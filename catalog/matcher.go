package catalog

import "strings"

// Match reports whether name matches a dot-separated pattern. Collection
// handles and event kinds both use it.
//
//	"posts"          exact
//	"entry.*"        one segment wildcard
//	"*"              everything
func Match(pattern, name string) bool {
	if pattern == "*" || pattern == name {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	nameParts := strings.Split(name, ".")

	if len(patternParts) != len(nameParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp != "*" && pp != nameParts[i] {
			return false
		}
	}

	return true
}

// MatchAny reports whether name matches any pattern. An empty pattern list
// matches everything.
func MatchAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if Match(p, name) {
			return true
		}
	}
	return false
}
