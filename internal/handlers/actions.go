package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetpilot-backend/internal/models"
)

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	actions, err := h.orch.ListRecent(r.Context(), limit)
	if err != nil {
		log.Printf("ERROR actions: list: %v", err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"actions": actions})
}

func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action, err := h.storage.GetAction(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var result *models.ActionResult
	if len(action.ResultJSON) > 0 {
		var decoded models.ActionResult
		if err := json.Unmarshal(action.ResultJSON, &decoded); err == nil {
			result = &decoded
		}
	}

	respondOK(w, map[string]interface{}{"action": action, "result": result})
}

// ExecuteAction submits and synchronously runs one action. The response is
// structured even when execution fails; only pre-execution problems (unknown
// device, gated action type) surface as error envelopes.
func (h *Handler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	var input models.ExecuteActionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.DeviceID == "" || input.ActionType == "" {
		respondError(w, http.StatusBadRequest, "deviceId and actionType are required")
		return
	}

	timeout := time.Duration(input.TimeoutMS) * time.Millisecond
	action, err := h.orch.Submit(r.Context(), input.DeviceID, input.ActionType, input.Params, timeout)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var result models.ActionResult
	_ = json.Unmarshal(action.ResultJSON, &result)

	respondOK(w, map[string]interface{}{
		"action": action,
		"result": result,
	})
}

// ClearActions deletes all action history. Confirmation is the dashboard's
// job; this endpoint is unconditional.
func (h *Handler) ClearActions(w http.ResponseWriter, r *http.Request) {
	n, err := h.orch.ClearHistory(r.Context())
	if err != nil {
		log.Printf("ERROR actions: clear history: %v", err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"deleted": n})
}
