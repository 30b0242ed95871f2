package revision

import (
	"reflect"

	"github.com/xraph/press/entry"
)

// ShallowDiff compares the top-level keys of after against before. Keys
// present in after whose value differs (or that are new) are reported;
// keys removed from after are not. Reported values are deep copies.
func ShallowDiff(before, after map[string]any) Diff {
	d := Diff{}
	for k, to := range after {
		from, had := before[k]
		if had && equal(from, to) {
			continue
		}
		d[k] = Change{From: entry.CloneValue(from), To: entry.CloneValue(to)}
	}
	return d
}

// equal compares JSON-shaped values. Numbers are compared by value so that a
// stored float64 equals the int a caller sent.
func equal(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
