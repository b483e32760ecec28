package textmatch

import "testing"

func TestNormalize_StripsFormattingAndCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Aspirin", "aspirin"},
		{"  As pi-rin! ", "aspirin"},
		{"ASPIRIN 500", "aspirin500"},
		{"Ибупрофен", "ибупрофен"},
		{"אקמול ", "אקמול"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q)=%q, want=%q", tt.in, got, tt.want)
		}
	}
}

func TestDistance_Basic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		max  int
		want int
	}{
		{"aspirin", "aspirin", 2, 0},
		{"aspirn", "aspirin", 2, 1},
		{"", "ab", 2, 2},
		{"ab", "", 2, 2},
		{"", "abcd", 2, 3},
		{"kitten", "sitting", 3, 3},
		{"panadol", "panadolextra", 2, 3}, // length gap exceeds bound
		{"abc", "xyz", 2, 3},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b, tt.max); got != tt.want {
			t.Fatalf("Distance(%q, %q, %d)=%d, want=%d", tt.a, tt.b, tt.max, got, tt.want)
		}
	}
}

func TestDistance_SymmetricWithinBound(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"aspirn", "aspirin"},
		{"panadl", "panadol"},
		{"nurofen", "neurofen"},
	}
	for _, p := range pairs {
		if d1, d2 := Distance(p[0], p[1], 2), Distance(p[1], p[0], 2); d1 != d2 {
			t.Fatalf("asymmetric distance for %q/%q: %d vs %d", p[0], p[1], d1, d2)
		}
	}
}

func TestDistance_BoundExceededReturnsMaxPlusOne(t *testing.T) {
	t.Parallel()

	if got := Distance("completely", "different", 2); got != 3 {
		t.Fatalf("got=%d, want=3", got)
	}
}
