package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetpilot-backend/internal/escalation"
	"fleetpilot-backend/internal/models"
)

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.storage.ListActiveAlerts(r.Context())
	if err != nil {
		log.Printf("ERROR alerts: list: %v", err)
		respondDomainError(w, err)
		return
	}

	var counts models.SeverityCounts
	for _, a := range alerts {
		switch a.Severity {
		case models.SeverityCritical:
			counts.Critical++
		case models.SeverityHigh:
			counts.High++
		case models.SeverityMedium:
			counts.Medium++
		case models.SeverityLow:
			counts.Low++
		}
	}

	respondOK(w, map[string]interface{}{"alerts": alerts, "counts": counts})
}

func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AlertID        string `json:"alertId"`
		AcknowledgedBy string `json:"acknowledgedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.AlertID == "" {
		respondError(w, http.StatusBadRequest, "alertId is required")
		return
	}

	if err := h.storage.AcknowledgeAlert(r.Context(), input.AlertID, input.AcknowledgedBy, time.Now().UTC()); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, nil)
}

func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AlertID    string `json:"alertId"`
		ResolvedBy string `json:"resolvedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.AlertID == "" {
		respondError(w, http.StatusBadRequest, "alertId is required")
		return
	}

	if err := h.storage.ResolveAlert(r.Context(), input.AlertID, input.ResolvedBy, time.Now().UTC()); err != nil {
		respondDomainError(w, err)
		return
	}

	// A resolved alert escalates no further.
	h.escalation.Stop(input.AlertID)
	respondOK(w, nil)
}

func (h *Handler) StartEscalation(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	var input struct {
		Tiers             []models.EscalationTier `json:"tiers"`
		BusinessHoursOnly bool                    `json:"businessHoursOnly"`
	}
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	tiers := input.Tiers
	if len(tiers) == 0 {
		tiers = escalation.DefaultTiers()
	}

	if err := h.escalation.Start(r.Context(), alertID, tiers, input.BusinessHoursOnly); err != nil {
		log.Printf("ERROR alerts: start escalation for %s: %v", alertID, err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, nil)
}

func (h *Handler) StopEscalation(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	h.escalation.Stop(alertID)
	respondOK(w, nil)
}

func (h *Handler) EscalationStatus(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	status, err := h.escalation.Status(r.Context(), alertID, escalation.DefaultTiers())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"escalation": status})
}
