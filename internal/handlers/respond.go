package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"fleetpilot-backend/internal/escalation"
	"fleetpilot-backend/internal/orchestrator"
	"fleetpilot-backend/internal/pairing"
	"fleetpilot-backend/internal/storage"
)

// Every JSON endpoint answers with a well-formed envelope carrying at least
// success, so clients can branch uniformly.

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already gone; nothing to do but note it.
		return
	}
}

func respondOK(w http.ResponseWriter, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	respondJSON(w, http.StatusOK, body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondDomainError maps known sentinel errors to status codes; anything
// unrecognized becomes a 500 with a non-sensitive message.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrDeviceNotFound),
		errors.Is(err, storage.ErrSiteNotFound),
		errors.Is(err, storage.ErrAlertNotFound),
		errors.Is(err, storage.ErrActionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrHostnameTaken),
		errors.Is(err, storage.ErrSiteNameTaken),
		errors.Is(err, storage.ErrSiteNotEmpty),
		errors.Is(err, storage.ErrAlertResolved),
		errors.Is(err, orchestrator.ErrConfirmationRequired),
		errors.Is(err, escalation.ErrNoTiers):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pairing.ErrCodeInvalid),
		errors.Is(err, pairing.ErrCodeExpired),
		errors.Is(err, pairing.ErrCodeUsed):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
