package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"fleetpilot-backend/internal/middleware"
	"fleetpilot-backend/internal/pairing"
)

// RenewAgentCredentials re-issues the session token and NATS creds for the
// authenticated device, so agents can roll credentials before expiry without
// pairing again.
func (h *Handler) RenewAgentCredentials(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.DeviceID(r.Context())
	if deviceID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if _, err := h.storage.GetDevice(r.Context(), deviceID); err != nil {
		respondDomainError(w, err)
		return
	}

	token, natsCreds, expiresAt, err := h.pairing.Credentials(deviceID)
	if errors.Is(err, pairing.ErrNoCredentialer) {
		respondError(w, http.StatusServiceUnavailable, "credential issuing is not configured")
		return
	}
	if err != nil {
		log.Printf("ERROR agent: renew credentials for %s: %v", deviceID, err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondOK(w, map[string]interface{}{
		"token":      token,
		"nats_creds": natsCreds,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}
