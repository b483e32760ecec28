package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// stockHandler asks the external inventory service whether a medication is in
// stock. Every failure mode maps to a payload the model can relay; transport
// problems never surface as Go errors.
type stockHandler struct {
	deps Deps
}

func (h *stockHandler) Name() string { return agent.ToolCheckStock }

func (h *stockHandler) Execute(ctx context.Context, args map[string]string) (map[string]any, error) {
	medID := strings.TrimSpace(args["med_id"])
	lang := i18n.NormalizeLang(args["lang"])
	if medID == "" {
		h.deps.Logger.Warn("stock check without med_id")
		return missingParamResult(h.deps.Messages, "med_id", "inventory", "missing_med_id", lang), nil
	}

	endpoint := strings.TrimRight(h.deps.InventoryBaseURL, "/") + "/check_stock/" + url.PathEscape(medID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build stock request: %w", err)
	}

	resp, err := h.deps.HTTPClient.Do(req)
	if err != nil {
		return h.transportFailure(medID, lang, err), nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		h.deps.Logger.Warn("medication not in inventory", "med_id", medID)
		return map[string]any{
			"success": false,
			"error":   "not_found",
			"message": h.deps.Messages.Get("inventory", "not_found", lang, map[string]string{"med_id": medID}),
		}, nil
	case resp.StatusCode != http.StatusOK:
		h.deps.Logger.Error("inventory service error", "med_id", medID, "status", resp.StatusCode)
		return map[string]any{
			"success": false,
			"error":   "http_error",
			"message": h.deps.Messages.Get("inventory", "http_error", lang, nil),
		}, nil
	}

	var body struct {
		ID      string `json:"id"`
		InStock bool   `json:"in_stock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		h.deps.Logger.Error("invalid inventory response", "med_id", medID, "err", err)
		return map[string]any{
			"success": false,
			"error":   "invalid_response",
			"message": h.deps.Messages.Get("inventory", "invalid_response", lang, nil),
		}, nil
	}
	if body.ID == "" {
		body.ID = medID
	}

	h.deps.Logger.Info("stock check", "med_id", medID, "in_stock", body.InStock)
	return map[string]any{
		"success":  true,
		"id":       body.ID,
		"in_stock": body.InStock,
	}, nil
}

func (h *stockHandler) transportFailure(medID, lang string, err error) map[string]any {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		h.deps.Logger.Error("inventory timeout", "med_id", medID)
		return map[string]any{
			"success": false,
			"error":   "timeout",
			"message": h.deps.Messages.Get("inventory", "timeout", lang, nil),
		}
	}
	h.deps.Logger.Error("inventory unreachable", "med_id", medID, "err", err)
	return map[string]any{
		"success": false,
		"error":   "service_unavailable",
		"message": h.deps.Messages.Get("inventory", "service_unavailable", lang, nil),
	}
}
