package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleetpilot-backend/internal/models"
)

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	if hostname := r.URL.Query().Get("hostname"); hostname != "" {
		device, err := h.storage.GetDeviceByHostname(r.Context(), hostname)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondOK(w, map[string]interface{}{"devices": []models.Device{*device}})
		return
	}

	devices, err := h.storage.ListDevices(r.Context())
	if err != nil {
		log.Printf("ERROR devices: list: %v", err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"devices": devices})
}

func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	device, err := h.storage.GetDevice(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	// The cache is written on every heartbeat; it beats the row for freshness.
	if status, err := h.cache.GetStatus(id); err == nil && status != "" {
		device.Status = status
	}
	urls, err := h.storage.ListDeviceURLs(r.Context(), id)
	if err != nil {
		log.Printf("ERROR devices: list urls for %s: %v", id, err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"device": device, "urls": urls})
}

// RevealDeviceCredentials decrypts and returns the stored admin credential.
func (h *Handler) RevealDeviceCredentials(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	device, err := h.storage.GetDevice(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if len(device.AdminSecret) == 0 {
		respondError(w, http.StatusNotFound, "no admin credential stored")
		return
	}

	password, err := h.box.Open(device.AdminSecret)
	if err != nil {
		log.Printf("ERROR devices: open credential for %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondOK(w, map[string]interface{}{
		"admin_user": device.AdminUser,
		"admin_pass": password,
	})
}

func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var input models.CreateDeviceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if input.Hostname == "" {
		respondError(w, http.StatusBadRequest, "hostname is required")
		return
	}
	if input.SiteID == "" {
		respondError(w, http.StatusBadRequest, "a valid siteId is required")
		return
	}
	if _, err := h.storage.GetSite(r.Context(), input.SiteID); err != nil {
		respondDomainError(w, err)
		return
	}

	deviceType := input.DeviceType
	if deviceType == "" {
		deviceType = models.DeviceTypeOther
	}

	device := &models.Device{
		ID:          uuid.New().String(),
		Hostname:    input.Hostname,
		IPAddress:   input.IPAddress,
		SiteID:      input.SiteID,
		DeviceType:  deviceType,
		Status:      models.DeviceStatusPending,
		Tags:        input.Tags,
		Description: input.Description,
		Notes:       input.Notes,
		AdminUser:   input.AdminUser,
	}
	if input.AdminPass != "" {
		sealed, err := h.box.Seal(input.AdminPass)
		if err != nil {
			log.Printf("ERROR devices: seal credential: %v", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		device.AdminSecret = sealed
	}

	if err := h.storage.CreateDevice(r.Context(), device); err != nil {
		respondDomainError(w, err)
		return
	}

	respondOK(w, map[string]interface{}{"device": device})
}

func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateDeviceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.ID == "" {
		respondError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	device, err := h.storage.GetDevice(r.Context(), input.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if input.Hostname != nil {
		device.Hostname = *input.Hostname
	}
	if input.IPAddress != nil {
		device.IPAddress = *input.IPAddress
	}
	if input.SiteID != nil {
		if _, err := h.storage.GetSite(r.Context(), *input.SiteID); err != nil {
			respondDomainError(w, err)
			return
		}
		device.SiteID = *input.SiteID
	}
	if input.DeviceType != nil {
		device.DeviceType = *input.DeviceType
	}
	if input.Tags != nil {
		device.Tags = *input.Tags
	}
	if input.Description != nil {
		device.Description = *input.Description
	}
	if input.Notes != nil {
		device.Notes = *input.Notes
	}
	if input.AdminUser != nil {
		device.AdminUser = *input.AdminUser
	}
	if input.AdminPass != nil {
		sealed, err := h.box.Seal(*input.AdminPass)
		if err != nil {
			log.Printf("ERROR devices: seal credential: %v", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		device.AdminSecret = sealed
	}

	if err := h.storage.UpdateDevice(r.Context(), device); err != nil {
		respondDomainError(w, err)
		return
	}

	respondOK(w, map[string]interface{}{"device": device})
}

func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.ID == "" {
		respondError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	if err := h.storage.DeleteDevice(r.Context(), input.ID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, nil)
}

func (h *Handler) AddDeviceURL(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	var input struct {
		Label string `json:"label"`
		URL   string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	if _, err := h.storage.GetDevice(r.Context(), deviceID); err != nil {
		respondDomainError(w, err)
		return
	}

	u := &models.DeviceURL{
		ID:       uuid.New().String(),
		DeviceID: deviceID,
		Label:    input.Label,
		URL:      input.URL,
	}
	if err := h.storage.AddDeviceURL(r.Context(), u); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"url": u})
}

func (h *Handler) DeleteDeviceURL(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID string `json:"urlId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.storage.DeleteDeviceURL(r.Context(), input.ID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, nil)
}
