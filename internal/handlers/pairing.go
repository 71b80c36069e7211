package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"fleetpilot-backend/internal/models"
)

func (h *Handler) CreatePairingCode(w http.ResponseWriter, r *http.Request) {
	code, expiresAt, err := h.pairing.CreateCode()
	if err != nil {
		log.Printf("ERROR pairing: create code: %v", err)
		respondError(w, http.StatusInternalServerError, "could not create pairing code")
		return
	}
	respondOK(w, map[string]interface{}{
		"code":      code,
		"expiresAt": expiresAt,
	})
}

func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var input models.RegisterDeviceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.PairingCode == "" {
		respondError(w, http.StatusBadRequest, "pairingCode is required")
		return
	}
	if input.Hostname == "" {
		respondError(w, http.StatusBadRequest, "hostname is required")
		return
	}

	result, err := h.pairing.Redeem(r.Context(), input)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"registration": result})
}

func (h *Handler) PairingStatus(w http.ResponseWriter, r *http.Request) {
	// Redemption audit from the last day rides along with the live codes.
	redeemed, err := h.storage.ListRedeemedCodes(r.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		log.Printf("ERROR pairing: list redeemed: %v", err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"codes":    h.pairing.Outstanding(),
		"redeemed": redeemed,
	})
}
