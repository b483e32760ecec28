package agent

import (
	"strings"
	"testing"
)

func TestSystemPrompt_ListsEveryRegisteredTool(t *testing.T) {
	t.Parallel()

	schemas, err := LoadToolSchemas()
	if err != nil {
		t.Fatalf("load schemas: %v", err)
	}
	prompt := NewPromptBuilder(testCatalog(t)).SystemPrompt("en")
	for _, schema := range schemas {
		if !strings.Contains(prompt, schema.Name) {
			t.Fatalf("prompt does not mention tool %q", schema.Name)
		}
	}
}

func TestSystemPrompt_LocalizedAndCached(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(testCatalog(t))

	en := b.SystemPrompt("en")
	if !strings.Contains(en, "English preferred") {
		t.Fatalf("missing language preference line")
	}
	if !strings.Contains(en, "Aspirin") {
		t.Fatalf("knowledge base not embedded")
	}

	he := b.SystemPrompt("he")
	if !strings.Contains(he, "Hebrew preferred") {
		t.Fatalf("hebrew prompt not localized")
	}

	if again := b.SystemPrompt("en"); again != en {
		t.Fatalf("cached prompt differs")
	}
}
