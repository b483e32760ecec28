package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/catalog"
	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// maxPharmacyResults caps the locations surfaced per lookup.
const maxPharmacyResults = 5

// pharmacyHandler locates pharmacy branches by zip code or city, with fuzzy
// city matching for misspelled input.
type pharmacyHandler struct {
	deps Deps
}

func (h *pharmacyHandler) Name() string { return agent.ToolFindNearestPharmacy }

func (h *pharmacyHandler) Execute(_ context.Context, args map[string]string) (map[string]any, error) {
	zipCode := strings.TrimSpace(args["zip_code"])
	city := strings.TrimSpace(args["city"])
	lang := i18n.NormalizeLang(args["lang"])

	if zipCode == "" && city == "" {
		h.deps.Logger.Warn("pharmacy lookup without location")
		return map[string]any{
			"success": false,
			"error":   "missing_location",
			"message": h.deps.Messages.Get("pharmacy", "missing_location", lang, nil),
		}, nil
	}

	all := h.deps.Catalog.Pharmacies()
	searched := zipCode
	if searched == "" {
		searched = city
	}

	var matched []catalog.Pharmacy
	switch {
	case zipCode != "":
		for _, p := range all {
			if strings.Contains(p.ZipCode, zipCode) {
				matched = append(matched, p)
			}
		}
	default:
		lower := strings.ToLower(city)
		for _, p := range all {
			if strings.Contains(strings.ToLower(p.City), lower) {
				matched = append(matched, p)
			}
		}
	}

	if len(matched) == 0 && city != "" {
		if res := h.deps.Catalog.ResolveCity(city); res.Matched {
			for _, p := range all {
				if strings.EqualFold(p.City, res.Name) {
					matched = append(matched, p)
				}
			}
			searched = res.Name
		}
	}

	if len(matched) == 0 {
		available := strings.Join(h.deps.Catalog.Cities(), ", ")
		h.deps.Logger.Info("no pharmacies for location", "searched", searched)
		return map[string]any{
			"success":            true,
			"location_not_found": true,
			"searched_location":  searched,
			"count":              0,
			"pharmacies":         []map[string]any{},
			"message": h.deps.Messages.Get("pharmacy", "not_found", lang, map[string]string{
				"searched_location": searched,
				"available":         available,
			}),
		}, nil
	}

	total := len(matched)
	if len(matched) > maxPharmacyResults {
		matched = matched[:maxPharmacyResults]
	}
	formatted := make([]map[string]any, 0, len(matched))
	for _, p := range matched {
		formatted = append(formatted, map[string]any{
			"id":       p.ID,
			"name":     p.Name,
			"address":  p.Address,
			"city":     p.City,
			"zip_code": p.ZipCode,
			"phone":    p.Phone,
			"hours":    formatHours(p.Hours),
			"services": p.Services,
		})
	}

	h.deps.Logger.Info("pharmacies found", "searched", searched, "count", total)
	return map[string]any{
		"success":            true,
		"location_not_found": false,
		"searched_location":  searched,
		"count":              total,
		"pharmacies":         formatted,
		"message": h.deps.Messages.Get("pharmacy", "found", lang, map[string]string{
			"count":   strconv.Itoa(total),
			"name":    matched[0].Name,
			"address": matched[0].Address,
		}),
	}, nil
}

func formatHours(hours map[string]string) string {
	get := func(day string) string {
		if v := strings.TrimSpace(hours[day]); v != "" {
			return v
		}
		return "Closed"
	}
	return fmt.Sprintf("Sun: %s, Mon-Thu: %s, Fri: %s, Sat: %s",
		get("sunday"), get("monday"), get("friday"), get("saturday"))
}
