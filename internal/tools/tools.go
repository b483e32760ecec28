// Package tools implements the pharmacy tool handlers the model can call
// during a conversation turn. Every handler returns a JSON-shaped payload map;
// a Go error is reserved for failures the caller should treat as internal.
package tools

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/catalog"
	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/userdb"
)

const defaultInventoryTimeout = 10 * time.Second

// Deps carries the shared dependencies of all tool handlers.
type Deps struct {
	Catalog          *catalog.Catalog
	Messages         *i18n.Table
	Users            *userdb.Store
	InventoryBaseURL string
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

// All builds the full handler set in the order the model sees them.
func All(deps Deps) []agent.ToolHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: defaultInventoryTimeout}
	}
	return []agent.ToolHandler{
		&medicationInfoHandler{deps: deps},
		&resolveMedicationHandler{deps: deps},
		&ingredientSearchHandler{deps: deps},
		&stockHandler{deps: deps},
		&pharmacyHandler{deps: deps},
		&prescriptionHandler{deps: deps},
		&handlingHandler{deps: deps},
	}
}

// ambiguousResult asks the user to pick between closely matching medications.
func ambiguousResult(messages *i18n.Table, candidates []catalog.Candidate, lang string) map[string]any {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.DisplayName != "" {
			names = append(names, c.DisplayName)
		}
	}
	if len(names) > 3 {
		names = names[:3]
	}
	options := ""
	for i, name := range names {
		if i > 0 {
			options += ", "
		}
		options += name
	}
	return map[string]any{
		"success":    false,
		"error":      "ambiguous_match",
		"message":    messages.Get("general", "ambiguous_match", lang, map[string]string{"options": options}),
		"candidates": names,
	}
}

func missingParamResult(messages *i18n.Table, param, category, key, lang string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   "missing required parameter: " + param,
		"message": messages.Get(category, key, lang, nil),
	}
}
