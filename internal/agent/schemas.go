package agent

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// LoadToolSchemas reads the embedded tool schema files, sorted by tool name
// for a stable ordering in model requests.
func LoadToolSchemas() ([]ToolSchema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	out := make([]ToolSchema, 0, len(entries))
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		var file struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		}
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry.Name(), err)
		}
		if file.Name == "" {
			return nil, fmt.Errorf("schema %s has no tool name", entry.Name())
		}
		out = append(out, ToolSchema{
			Name:        file.Name,
			Description: file.Description,
			Parameters:  file.Parameters,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
