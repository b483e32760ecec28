package tools

import (
	"context"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/catalog"
	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// medicationInfoHandler returns the full label record for a medication named
// by id or free text.
type medicationInfoHandler struct {
	deps Deps
}

func (h *medicationInfoHandler) Name() string { return agent.ToolGetMedicationInfo }

func (h *medicationInfoHandler) Execute(_ context.Context, args map[string]string) (map[string]any, error) {
	query := strings.TrimSpace(args["query"])
	lang := i18n.NormalizeLang(args["lang"])
	if query == "" {
		h.deps.Logger.Warn("medication info lookup without query")
		return missingParamResult(h.deps.Messages, "query", "medication", "missing_query", lang), nil
	}

	med, ok := h.deps.Catalog.MedicationByID(query)
	if !ok {
		res := h.deps.Catalog.ResolveMedication(query, lang)
		if res.IsAmbiguous() {
			h.deps.Logger.Info("ambiguous medication match", "query", query, "lang", lang)
			return ambiguousResult(h.deps.Messages, res.Ambiguous, lang), nil
		}
		if !res.Matched {
			h.deps.Logger.Info("medication not found", "query", query, "lang", lang)
			return map[string]any{
				"success": false,
				"message": h.deps.Messages.Get("medication", "info_not_found", lang, map[string]string{"query": query}),
			}, nil
		}
		med, _ = h.deps.Catalog.MedicationByID(res.ID)
	}

	h.deps.Logger.Info("medication info found", "query", query, "med_id", med.ID)
	return map[string]any{
		"success":    true,
		"medication": medicationDetail(med, lang),
	}, nil
}

// resolveMedicationHandler maps a medication name to its catalog id.
type resolveMedicationHandler struct {
	deps Deps
}

func (h *resolveMedicationHandler) Name() string { return agent.ToolResolveMedicationID }

func (h *resolveMedicationHandler) Execute(_ context.Context, args map[string]string) (map[string]any, error) {
	name := strings.TrimSpace(args["name"])
	lang := i18n.NormalizeLang(args["lang"])
	if name == "" {
		h.deps.Logger.Warn("medication id resolution without name")
		return missingParamResult(h.deps.Messages, "name", "medication", "missing_name", lang), nil
	}

	res := h.deps.Catalog.ResolveMedication(name, lang)
	if res.IsAmbiguous() {
		h.deps.Logger.Info("ambiguous medication match", "name", name, "lang", lang)
		return ambiguousResult(h.deps.Messages, res.Ambiguous, lang), nil
	}
	if !res.Matched {
		h.deps.Logger.Info("medication not resolved", "name", name, "lang", lang)
		return map[string]any{
			"success": false,
			"message": h.deps.Messages.Get("medication", "resolve_not_found", lang, map[string]string{"name": name}),
		}, nil
	}

	displayName := res.Name
	if med, ok := h.deps.Catalog.MedicationByID(res.ID); ok {
		displayName = med.Names.Value(lang)
	}
	h.deps.Logger.Info("medication resolved", "name", name, "med_id", res.ID)
	return map[string]any{
		"success": true,
		"id":      res.ID,
		"name":    displayName,
	}, nil
}

// ingredientSearchHandler finds medications by active ingredient. Exact
// case-insensitive equality in any supported language wins; a fuzzy substring
// pass catches partial input like "ibuprof".
type ingredientSearchHandler struct {
	deps Deps
}

func (h *ingredientSearchHandler) Name() string { return agent.ToolSearchByIngredient }

func (h *ingredientSearchHandler) Execute(_ context.Context, args map[string]string) (map[string]any, error) {
	ingredient := strings.TrimSpace(args["ingredient"])
	lang := i18n.NormalizeLang(args["lang"])
	if ingredient == "" {
		h.deps.Logger.Warn("ingredient search without ingredient")
		return missingParamResult(h.deps.Messages, "ingredient", "medication", "missing_ingredient", lang), nil
	}

	matches := h.searchExact(ingredient, lang)
	if len(matches) == 0 {
		matches = h.searchFuzzy(ingredient)
	}

	if len(matches) == 0 {
		h.deps.Logger.Info("no medications for ingredient", "ingredient", ingredient)
		return map[string]any{
			"success":     true,
			"matches":     0,
			"medications": []map[string]any{},
			"message":     h.deps.Messages.Get("medication", "no_results", lang, map[string]string{"ingredient": ingredient}),
		}, nil
	}

	payload := make([]map[string]any, 0, len(matches))
	for _, med := range matches {
		payload = append(payload, medicationSummary(med, lang))
	}
	h.deps.Logger.Info("ingredient search matched", "ingredient", ingredient, "matches", len(payload))
	return map[string]any{
		"success":     true,
		"matches":     len(payload),
		"medications": payload,
	}, nil
}

func (h *ingredientSearchHandler) searchExact(ingredient, lang string) []catalog.Medication {
	want := strings.ToLower(ingredient)
	langs := append([]string{lang}, i18n.SupportedLanguages...)
	var out []catalog.Medication
	for _, med := range h.deps.Catalog.Medications() {
		for _, l := range langs {
			if strings.ToLower(strings.TrimSpace(med.ActiveIngredient[l])) == want {
				out = append(out, med)
				break
			}
		}
	}
	return out
}

func (h *ingredientSearchHandler) searchFuzzy(ingredient string) []catalog.Medication {
	var out []catalog.Medication
	for _, med := range h.deps.Catalog.Medications() {
		for _, name := range med.ActiveIngredient {
			if fuzzy.MatchFold(ingredient, name) {
				out = append(out, med)
				break
			}
		}
	}
	return out
}

func medicationSummary(med catalog.Medication, lang string) map[string]any {
	return map[string]any{
		"id":                    med.ID,
		"name":                  med.Names.Value(lang),
		"active_ingredient":     med.ActiveIngredient.Value(lang),
		"dosage":                med.Dosage,
		"prescription_required": med.PrescriptionRequired,
		"price_usd":             med.PriceUSD,
		"category":              med.Category.Value(lang),
	}
}

func medicationDetail(med catalog.Medication, lang string) map[string]any {
	detail := medicationSummary(med, lang)
	detail["usage_instructions"] = med.UsageInstructions.Value(lang)
	detail["warnings"] = med.Warnings.Value(lang)
	return detail
}
