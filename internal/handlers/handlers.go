package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetpilot-backend/internal/cache"
	"fleetpilot-backend/internal/escalation"
	"fleetpilot-backend/internal/middleware"
	"fleetpilot-backend/internal/orchestrator"
	"fleetpilot-backend/internal/pairing"
	"fleetpilot-backend/internal/secrets"
	"fleetpilot-backend/internal/storage"
)

type Handler struct {
	storage    *storage.Storage
	orch       *orchestrator.Orchestrator
	pairing    *pairing.Service
	escalation *escalation.Engine
	box        *secrets.Box
	cache      cache.Client
}

func New(store *storage.Storage, orch *orchestrator.Orchestrator, pairingSvc *pairing.Service, esc *escalation.Engine, box *secrets.Box, cacheClient cache.Client) *Handler {
	return &Handler{
		storage:    store,
		orch:       orch,
		pairing:    pairingSvc,
		escalation: esc,
		box:        box,
		cache:      cacheClient,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	// Unmatched paths and wrong methods still answer with the JSON envelope.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		// Devices
		r.Get("/devices", h.ListDevices)
		r.Post("/devices/add", h.CreateDevice)
		r.Post("/devices/update", h.UpdateDevice)
		r.Post("/devices/delete", h.DeleteDevice)
		r.Get("/devices/{id}", h.GetDevice)
		r.Get("/devices/{id}/credentials", h.RevealDeviceCredentials)
		r.Post("/devices/{id}/urls/add", h.AddDeviceURL)
		r.Post("/devices/{id}/urls/delete", h.DeleteDeviceURL)

		// Alerts
		r.Get("/alerts", h.ListAlerts)
		r.Post("/alerts/acknowledge", h.AcknowledgeAlert)
		r.Post("/alerts/resolve", h.ResolveAlert)
		r.Get("/alerts/{id}/escalation", h.EscalationStatus)
		r.Post("/alerts/{id}/escalate", h.StartEscalation)
		r.Post("/alerts/{id}/escalation/stop", h.StopEscalation)

		// Actions
		r.Get("/actions", h.ListActions)
		r.Post("/actions/execute", h.ExecuteAction)
		r.Post("/actions/clear", h.ClearActions)
		r.Get("/actions/{id}", h.GetAction)

		// Pairing
		r.With(middleware.RateLimitPairingCreate(h.cache)).
			Post("/pairing/create", h.CreatePairingCode)
		r.With(middleware.RateLimitRegister(h.cache)).
			Post("/pairing/register", h.RegisterDevice)
		r.Get("/pairing/status", h.PairingStatus)

		// Agent endpoints, authenticated with the pairing-issued token.
		r.With(middleware.RequireDeviceAuth).
			Post("/agent/renew", h.RenewAgentCredentials)

		// Sites. Literal routes before {id} so /sites/export never matches
		// the parameterized pattern.
		r.Get("/sites", h.ListSites)
		r.Post("/sites/add", h.CreateSite)
		r.Post("/sites/update", h.UpdateSite)
		r.Post("/sites/delete", h.DeleteSite)
		r.Get("/sites/export", h.ExportSites)
		r.Post("/sites/import", h.ImportSites)
		r.Get("/sites/{id}", h.GetSite)
		r.Post("/sites/{id}/urls/add", h.AddSiteURL)
		r.Post("/sites/{id}/urls/delete", h.DeleteSiteURL)
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", h.Health)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondOK(w, nil)
}
