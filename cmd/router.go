package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/marketintel/internal/detect"
	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/store"
)

// newRouter builds the HTTP API around an initialized engine.
func newRouter(env *engineEnv, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	h := &apiHandler{env: env, log: zap.L().Named("api")}

	r.Get("/health", h.health)
	r.Post("/init-analysis", h.initAnalysis)
	r.Get("/analysis/{job_id}", h.getAnalysis)
	r.Get("/history/{job_id}", h.listHistory)
	r.Get("/history/{job_id}/diff", h.diffHistory)
	r.Post("/monitor", h.createMonitor)
	r.Get("/monitors", h.listMonitors)
	r.Get("/monitor/{id}/changes", h.listChanges)
	r.Get("/monitor/{id}/report", h.latestReport)
	r.Post("/monitor/{id}/refresh", h.refreshMonitor)

	return r
}

type apiHandler struct {
	env *engineEnv
	log *zap.Logger
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) initAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string `json:"url"`
		Scope  string `json:"scope"`
		Region string `json:"region"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	job, err := h.env.Orchestrator.Submit(r.Context(), model.JobInput{
		BaseURL: req.URL,
		Scope:   req.Scope,
		Region:  req.Region,
	})
	if err != nil {
		h.log.Error("submit analysis", zap.String("url", req.URL), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to start analysis")
		return
	}

	respond(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *apiHandler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobOr404(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, job)
}

func (h *apiHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobOr404(w, r)
	if !ok {
		return
	}

	snaps, err := h.env.Store.ListHistory(r.Context(), job.Input.BaseURL)
	if err != nil {
		h.log.Error("list history", zap.String("base_url", job.Input.BaseURL), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"base_url": job.Input.BaseURL,
		"analyses": snaps,
	})
}

// diffHistory runs the change detector over the two most recent analyses
// of the job's base URL. Fewer than two analyses yield an empty diff.
func (h *apiHandler) diffHistory(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobOr404(w, r)
	if !ok {
		return
	}

	snaps, err := h.env.Store.ListHistory(r.Context(), job.Input.BaseURL)
	if err != nil {
		h.log.Error("list history", zap.String("base_url", job.Input.BaseURL), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	changes := []model.ChangeEvent{}
	if len(snaps) >= 2 {
		prev, curr := snaps[len(snaps)-2], snaps[len(snaps)-1]
		changes = detect.Detect(&prev.Report, &curr.Report, "", time.Now().UTC())
	}
	respond(w, http.StatusOK, map[string]any{
		"base_url": job.Input.BaseURL,
		"changes":  changes,
	})
}

func (h *apiHandler) createMonitor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL                string `json:"url"`
		CompanyName        string `json:"company_name"`
		Scope              string `json:"scope"`
		Region             string `json:"region"`
		CheckIntervalHours int    `json:"check_interval_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	m, err := h.env.Scheduler.Create(r.Context(), model.MonitoredCompany{
		BaseURL:            req.URL,
		CompanyName:        req.CompanyName,
		Scope:              req.Scope,
		Region:             req.Region,
		CheckIntervalHours: req.CheckIntervalHours,
	})
	if err != nil {
		h.log.Error("create monitor", zap.String("url", req.URL), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create monitor")
		return
	}
	respond(w, http.StatusCreated, m)
}

func (h *apiHandler) listMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.env.Store.ListMonitors(r.Context())
	if err != nil {
		h.log.Error("list monitors", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list monitors")
		return
	}
	respond(w, http.StatusOK, map[string]any{"monitors": monitors})
}

func (h *apiHandler) listChanges(w http.ResponseWriter, r *http.Request) {
	m, ok := h.monitorOr404(w, r)
	if !ok {
		return
	}

	changes, err := h.env.Store.ListChanges(r.Context(), m.ID)
	if err != nil {
		h.log.Error("list changes", zap.String("monitor_id", m.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list changes")
		return
	}
	if changes == nil {
		changes = []model.ChangeEvent{}
	}
	respond(w, http.StatusOK, map[string]any{"monitor_id": m.ID, "changes": changes})
}

func (h *apiHandler) latestReport(w http.ResponseWriter, r *http.Request) {
	m, ok := h.monitorOr404(w, r)
	if !ok {
		return
	}

	snap, err := h.env.Store.LatestSnapshot(r.Context(), m.ID)
	if err != nil {
		h.log.Error("latest snapshot", zap.String("monitor_id", m.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if snap == nil {
		respondError(w, http.StatusNotFound, "no report yet")
		return
	}
	respond(w, http.StatusOK, snap)
}

func (h *apiHandler) refreshMonitor(w http.ResponseWriter, r *http.Request) {
	m, ok := h.monitorOr404(w, r)
	if !ok {
		return
	}

	events, err := h.env.Scheduler.Refresh(r.Context(), m.ID)
	if err != nil {
		h.log.Warn("manual refresh failed", zap.String("monitor_id", m.ID), zap.Error(err))
		respondError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	if events == nil {
		events = []model.ChangeEvent{}
	}
	respond(w, http.StatusOK, map[string]any{"monitor_id": m.ID, "changes": events})
}

func (h *apiHandler) jobOr404(w http.ResponseWriter, r *http.Request) (*model.AnalysisJob, bool) {
	job, err := h.env.Store.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
		} else {
			h.log.Error("get job", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to load job")
		}
		return nil, false
	}
	return job, true
}

func (h *apiHandler) monitorOr404(w http.ResponseWriter, r *http.Request) (*model.MonitoredCompany, bool) {
	m, err := h.env.Store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "monitor not found")
		} else {
			h.log.Error("get monitor", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to load monitor")
		}
		return nil, false
	}
	return m, true
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
