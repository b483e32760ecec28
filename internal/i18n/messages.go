// Package i18n holds the localized user-facing strings and script-based
// language detection for the assistant.
package i18n

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	LangEnglish = "en"
	LangHebrew  = "he"
	LangRussian = "ru"
	LangArabic  = "ar"
)

// SupportedLanguages lists language codes in inference priority order.
var SupportedLanguages = []string{LangEnglish, LangHebrew, LangRussian, LangArabic}

//go:embed messages.yaml
var messagesYAML []byte

// Table is the category -> key -> language -> text message catalog. It is
// loaded once at startup and read-only afterwards.
type Table struct {
	categories map[string]map[string]map[string]string
}

func Load() (*Table, error) {
	categories := map[string]map[string]map[string]string{}
	if err := yaml.Unmarshal(messagesYAML, &categories); err != nil {
		return nil, fmt.Errorf("parse message table: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("empty message table")
	}
	return &Table{categories: categories}, nil
}

// Get returns the message for category/key in lang, interpolating {name}
// placeholders from args. A missing translation falls back to English here and
// nowhere else; a missing key returns "".
func (t *Table) Get(category, key, lang string, args map[string]string) string {
	if t == nil {
		return ""
	}
	entry := t.categories[strings.ToLower(strings.TrimSpace(category))][strings.TrimSpace(key)]
	if entry == nil {
		return ""
	}
	text, ok := entry[NormalizeLang(lang)]
	if !ok || strings.TrimSpace(text) == "" {
		text = entry[LangEnglish]
	}
	for name, value := range args {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

// Refusal builds the standardized localized safety refusal for a violation
// reason.
func (t *Table) Refusal(lang, reason string) string {
	base := t.Get("safety", "refusal_base", lang, nil)
	suffix := t.Get("safety", "refusal_suffix", lang, map[string]string{"reason": reason})
	if suffix == "" {
		return base
	}
	return base + " " + suffix
}

// NormalizeLang maps a raw language code to a supported one, defaulting to
// English.
func NormalizeLang(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, lang := range SupportedLanguages {
		if v == lang {
			return lang
		}
	}
	return LangEnglish
}
