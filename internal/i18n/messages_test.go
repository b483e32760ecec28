package i18n

import (
	"strings"
	"testing"
)

func TestLoad_AllCategoriesPresent(t *testing.T) {
	t.Parallel()

	table, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, cat := range []string{"medication", "inventory", "pharmacy", "prescription", "handling", "general", "safety"} {
		if len(table.categories[cat]) == 0 {
			t.Fatalf("category %q missing", cat)
		}
	}
}

func TestGet_InterpolatesAndTranslates(t *testing.T) {
	t.Parallel()

	table, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := table.Get("medication", "resolve_not_found", "en", map[string]string{"name": "Aspirin"})
	if !strings.Contains(got, "'Aspirin'") {
		t.Fatalf("placeholder not interpolated: %q", got)
	}

	he := table.Get("medication", "missing_name", "he", nil)
	if he == "" || he == table.Get("medication", "missing_name", "en", nil) {
		t.Fatalf("expected Hebrew translation, got %q", he)
	}
}

func TestGet_FallsBackToEnglish(t *testing.T) {
	t.Parallel()

	table, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := table.Get("general", "ambiguous_match", "en", nil)
	if got := table.Get("general", "ambiguous_match", "xx", nil); got != want {
		t.Fatalf("got=%q, want English fallback %q", got, want)
	}
	if got := table.Get("general", "no_such_key", "en", nil); got != "" {
		t.Fatalf("missing key: got=%q, want empty", got)
	}
}

func TestRefusal_ContainsReason(t *testing.T) {
	t.Parallel()

	table, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := table.Refusal("en", "dose adjustment")
	if !strings.Contains(got, "dose adjustment") || !strings.Contains(got, "consult") {
		t.Fatalf("unexpected refusal: %q", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"", LangEnglish},
		{"is aspirin in stock?", LangEnglish},
		{"האם אקמול במלאי?", LangHebrew},
		{"есть ли аспирин в наличии?", LangRussian},
		{"هل الأسبرين متوفر؟", LangArabic},
		{"aspirin אקמול בבקשה", LangHebrew},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.text); got != tt.want {
			t.Fatalf("DetectLanguage(%q)=%q, want=%q", tt.text, got, tt.want)
		}
	}
}
