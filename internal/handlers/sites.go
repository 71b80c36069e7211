package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleetpilot-backend/internal/models"
)

func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.storage.ListSites(r.Context())
	if err != nil {
		log.Printf("ERROR sites: list: %v", err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"sites": sites})
}

func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	site, err := h.storage.GetSite(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	urls, err := h.storage.ListSiteURLs(r.Context(), id)
	if err != nil {
		log.Printf("ERROR sites: list urls for %s: %v", id, err)
		respondDomainError(w, err)
		return
	}
	count, err := h.storage.CountSiteDevices(r.Context(), id)
	if err != nil {
		log.Printf("ERROR sites: count devices for %s: %v", id, err)
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"site":        site,
		"urls":        urls,
		"deviceCount": count,
	})
}

func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var input models.CreateSiteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	site := &models.Site{
		ID:       uuid.New().String(),
		Name:     input.Name,
		Contact:  input.Contact,
		Address:  input.Address,
		Timezone: input.Timezone,
		Notes:    input.Notes,
	}
	if err := h.storage.CreateSite(r.Context(), site); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"site": site})
}

func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateSiteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.ID == "" {
		respondError(w, http.StatusBadRequest, "siteId is required")
		return
	}

	site, err := h.storage.GetSite(r.Context(), input.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if input.Name != nil {
		site.Name = *input.Name
	}
	if input.Contact != nil {
		site.Contact = *input.Contact
	}
	if input.Address != nil {
		site.Address = *input.Address
	}
	if input.Timezone != nil {
		site.Timezone = *input.Timezone
	}
	if input.Notes != nil {
		site.Notes = *input.Notes
	}

	if err := h.storage.UpdateSite(r.Context(), site); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"site": site})
}

// DeleteSite requires a disposition when devices are attached: cascade
// deletes them, reassign moves them, anything else blocks.
func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	var input models.DeleteSiteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.ID == "" {
		respondError(w, http.StatusBadRequest, "siteId is required")
		return
	}

	if err := h.storage.DeleteSite(r.Context(), input.ID, input.Disposition, input.ReassignTo); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, nil)
}

func (h *Handler) ExportSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.storage.ListSites(r.Context())
	if err != nil {
		log.Printf("ERROR sites: export: %v", err)
		respondDomainError(w, err)
		return
	}
	urls, err := h.storage.ListAllSiteURLs(r.Context())
	if err != nil {
		log.Printf("ERROR sites: export urls: %v", err)
		respondDomainError(w, err)
		return
	}

	export := models.SiteExport{
		ExportedAt: time.Now().UTC(),
		SiteURLs:   urls,
	}
	for _, s := range sites {
		export.Sites = append(export.Sites, s.Site)
	}

	respondOK(w, map[string]interface{}{"export": export})
}

func (h *Handler) ImportSites(w http.ResponseWriter, r *http.Request) {
	var export models.SiteExport
	if err := json.NewDecoder(r.Body).Decode(&export); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	imported := 0
	for i := range export.Sites {
		site := export.Sites[i]
		if site.ID == "" || site.Name == "" {
			continue
		}
		if err := h.storage.UpsertSite(r.Context(), &site); err != nil {
			log.Printf("WARN sites: import %q: %v", site.Name, err)
			continue
		}
		imported++
	}

	respondOK(w, map[string]interface{}{"imported": imported})
}

func (h *Handler) AddSiteURL(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "id")
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

	if _, err := h.storage.GetSite(r.Context(), siteID); err != nil {
		respondDomainError(w, err)
		return
	}

	u := &models.SiteURL{
		ID:     uuid.New().String(),
		SiteID: siteID,
		Label:  input.Label,
		URL:    input.URL,
	}
	if err := h.storage.AddSiteURL(r.Context(), u); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"url": u})
}

func (h *Handler) DeleteSiteURL(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID string `json:"urlId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.storage.DeleteSiteURL(r.Context(), input.ID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, nil)
}
