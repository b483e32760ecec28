package i18n

import "regexp"

// Script-range hints for language detection. Latin text falls through to
// English.
var languageHints = []struct {
	lang    string
	pattern *regexp.Regexp
}{
	{LangHebrew, regexp.MustCompile(`[\x{0590}-\x{05FF}]`)},
	{LangArabic, regexp.MustCompile(`[\x{0600}-\x{06FF}\x{0750}-\x{077F}\x{08A0}-\x{08FF}]`)},
	{LangRussian, regexp.MustCompile(`[\x{0400}-\x{04FF}]`)},
}

// DetectLanguage picks the supported language whose script occurs most often
// in text, defaulting to English.
func DetectLanguage(text string) string {
	if text == "" {
		return LangEnglish
	}
	best := LangEnglish
	bestCount := 0
	for _, hint := range languageHints {
		count := len(hint.pattern.FindAllString(text, -1))
		if count > bestCount {
			best = hint.lang
			bestCount = count
		}
	}
	return best
}

// IsRTL reports whether the language renders right-to-left.
func IsRTL(lang string) bool {
	switch NormalizeLang(lang) {
	case LangHebrew, LangArabic:
		return true
	default:
		return false
	}
}
