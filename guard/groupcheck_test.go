package guard

import "testing"

func TestTokenJaccard(t *testing.T) {
	if got := tokenJaccard("the cat sat", "the cat sat"); got != 1 {
		t.Errorf("tokenJaccard identical = %v, want 1", got)
	}
	if got := tokenJaccard("the cat sat", "a dog ran"); got != 0 {
		t.Errorf("tokenJaccard disjoint = %v, want 0", got)
	}
	got := tokenJaccard("the cat sat", "the cat ran")
	if got <= 0 || got >= 1 {
		t.Errorf("tokenJaccard partial overlap = %v, want strictly between 0 and 1", got)
	}
}

func TestTrigramOverlap(t *testing.T) {
	if got := trigramOverlap("hello world", "hello world"); got != 1 {
		t.Errorf("trigramOverlap identical = %v, want 1", got)
	}
	if got := trigramOverlap("hello world", "goodbye moon"); got >= trigramOverlapThreshold {
		t.Errorf("trigramOverlap unrelated = %v, want below threshold %v", got, trigramOverlapThreshold)
	}
}

func TestIsLowSignal(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"ok", true},
		{"got it", true},
		{"short", true},
		{"this is a reasonably long and substantive message with real content", false},
	}
	for _, tt := range tests {
		if got := isLowSignal(tt.input); got != tt.want {
			t.Errorf("isLowSignal(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
