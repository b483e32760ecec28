package tools

import (
	"context"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// handlingHandler returns label-based storage and safety guidance for a
// medication. Only factual label content; no dosing advice.
type handlingHandler struct {
	deps Deps
}

func (h *handlingHandler) Name() string { return agent.ToolGetHandlingWarnings }

func (h *handlingHandler) Execute(_ context.Context, args map[string]string) (map[string]any, error) {
	medID := strings.TrimSpace(args["med_id"])
	lang := i18n.NormalizeLang(args["lang"])
	if medID == "" {
		h.deps.Logger.Warn("handling warnings without med_id")
		return missingParamResult(h.deps.Messages, "med_id", "handling", "missing_med_id", lang), nil
	}

	med, ok := h.deps.Catalog.MedicationByID(medID)
	if !ok {
		h.deps.Logger.Info("medication not found for handling warnings", "med_id", medID)
		return map[string]any{
			"success": false,
			"error":   "not_found",
			"message": h.deps.Messages.Get("handling", "not_found", lang, map[string]string{"med_id": medID}),
		}, nil
	}

	instructions := []string{
		h.deps.Messages.Get("handling", "storage", lang, nil),
		h.deps.Messages.Get("handling", "child_safety", lang, nil),
	}
	if med.PrescriptionRequired {
		instructions = append(instructions, h.deps.Messages.Get("handling", "prescription", lang, nil))
	}

	h.deps.Logger.Info("handling warnings retrieved", "med_id", medID)
	return map[string]any{
		"success":               true,
		"med_id":                medID,
		"medication_name":       med.Names.Value(lang),
		"handling_instructions": instructions,
		"label_warnings":        med.Warnings.Value(lang),
		"message":               h.deps.Messages.Get("handling", "label_note", lang, nil),
	}, nil
}
