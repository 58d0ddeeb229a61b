package phonetic_test

import (
	"testing"

	"github.com/MrWong99/boxkeeper/internal/phonetic"
)

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	labels := []string{"A", "B", "KITCHEN", "GARAGE SHELF", "SHOES 1", "ESCAPE ROOM 1"}

	tests := []struct {
		name    string
		query   string
		want    string
		matched bool
	}{
		{name: "misspelt word", query: "kichen", want: "KITCHEN", matched: true},
		{name: "case insensitive exact", query: "kitchen", want: "KITCHEN", matched: true},
		{name: "multi word", query: "garage shelve", want: "GARAGE SHELF", matched: true},
		{name: "split word", query: "gar age shelf", want: "GARAGE SHELF", matched: true},
		{name: "number agrees", query: "shoe 1", want: "SHOES 1", matched: true},
		{name: "number differs", query: "shoes 2", matched: false},
		{name: "missing number", query: "escape room", matched: false},
		{name: "short query never matches letters", query: "bea", matched: false},
		{name: "too short", query: "b", matched: false},
		{name: "unrelated", query: "bathroom", matched: false},
	}
	m := phonetic.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, score, ok := m.Match(tt.query, labels)
			if ok != tt.matched {
				t.Fatalf("Match(%q): matched=%v (got %q, %.3f), want %v", tt.query, ok, got, score, tt.matched)
			}
			if !ok {
				if got != "" || score != 0 {
					t.Errorf("Match(%q): got (%q, %f) on no match, want zero values", tt.query, got, score)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.query, got, tt.want)
			}
			if score < 0.8 || score > 1 {
				t.Errorf("Match(%q): score=%f out of range", tt.query, score)
			}
		})
	}
}

func TestMatcher_EmptyLabels(t *testing.T) {
	t.Parallel()

	if _, _, ok := phonetic.New().Match("kitchen", nil); ok {
		t.Error("Match with no labels: matched=true, want false")
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()

	strict := phonetic.New(phonetic.WithPhoneticThreshold(0.99), phonetic.WithFuzzyThreshold(0.99))
	if got, _, ok := strict.Match("kichen", []string{"KITCHEN"}); ok {
		t.Errorf("strict matcher accepted %q", got)
	}

	lenient := phonetic.New(phonetic.WithPhoneticThreshold(0.5), phonetic.WithFuzzyThreshold(0.5))
	if _, _, ok := lenient.Match("kichen", []string{"KITCHEN"}); !ok {
		t.Error("lenient matcher rejected kichen")
	}
}
