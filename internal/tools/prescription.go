package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// prescriptionHandler lists a user's prescriptions, enriched with the
// localized medication name.
type prescriptionHandler struct {
	deps Deps
}

func (h *prescriptionHandler) Name() string { return agent.ToolGetUserPrescriptions }

func (h *prescriptionHandler) Execute(ctx context.Context, args map[string]string) (map[string]any, error) {
	userID := strings.TrimSpace(args["user_id"])
	lang := i18n.NormalizeLang(args["lang"])
	activeOnly := args["active_only"] != "false"

	if userID == "" {
		return map[string]any{
			"success": false,
			"error":   "missing_user",
			"message": h.deps.Messages.Get("prescription", "missing_user", lang, nil),
		}, nil
	}

	prescriptions, err := h.deps.Users.ListPrescriptions(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}

	if len(prescriptions) == 0 {
		return map[string]any{
			"success":       true,
			"count":         0,
			"active_only":   activeOnly,
			"prescriptions": []map[string]any{},
			"message":       h.deps.Messages.Get("prescription", "none_active", lang, nil),
		}, nil
	}

	enriched := make([]map[string]any, 0, len(prescriptions))
	for _, p := range prescriptions {
		var medName string
		if med, ok := h.deps.Catalog.MedicationByID(p.MedID); ok {
			medName = med.Names.Value(lang)
		}
		enriched = append(enriched, map[string]any{
			"id":       p.ID,
			"med_id":   p.MedID,
			"med_name": medName,
			"dosage":   p.Dosage,
			"status":   p.Status,
		})
	}

	h.deps.Logger.Info("prescriptions listed", "user_id", userID, "count", len(enriched))
	return map[string]any{
		"success":       true,
		"count":         len(enriched),
		"active_only":   activeOnly,
		"prescriptions": enriched,
		"message": h.deps.Messages.Get("prescription", "found", lang, map[string]string{
			"count": strconv.Itoa(len(enriched)),
		}),
	}, nil
}
