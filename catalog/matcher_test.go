package catalog

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*", "posts", true},
		{"*", "entry.published", true},
		{"posts", "posts", true},
		{"posts", "pages", false},
		{"entry.*", "entry.published", true},
		{"entry.*", "entry.unpublished", true},
		{"entry.*", "asset.published", false},
		{"*.published", "entry.published", true},
		{"*.published", "entry.unpublished", false},
		{"entry.*", "entry", false},
		{"blog.*", "blog.posts.drafts", false},
	}

	for _, tt := range tests {
		if got := Match(tt.pattern, tt.name); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	if !MatchAny(nil, "posts") {
		t.Error("empty pattern list should match everything")
	}
	if !MatchAny([]string{"pages", "posts"}, "posts") {
		t.Error("expected a match on the second pattern")
	}
	if MatchAny([]string{"pages"}, "posts") {
		t.Error("unexpected match")
	}
}
