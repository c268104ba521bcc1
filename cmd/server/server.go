package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"mihac/internal/app"
	"mihac/internal/handlers"
	"mihac/internal/models"
	"mihac/internal/services/rules"
	"mihac/internal/utils"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 20

// Server holds all dependencies
type Server struct {
	app    *app.App
	health *handlers.HealthHandler
	logger *zap.Logger
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RulesResponse describes the active rule configuration.
type RulesResponse struct {
	Version    string                 `json:"version"`
	Hash       string                 `json:"hash"`
	Source     string                 `json:"source"`
	Weights    rules.WeightTable      `json:"weights"`
	Thresholds rules.ThresholdTable   `json:"thresholds"`
	Rules      []models.ActivatedRule `json:"rules"`
}

// NewServer wires the HTTP surface around an App.
func NewServer(a *app.App, logger *zap.Logger) *Server {
	var store handlers.HealthChecker
	if a.Store != nil {
		store = a.Store
	}
	return &Server{
		app:    a,
		health: handlers.NewHealthHandler(store, a.Rules),
		logger: logger,
	}
}

// Routes builds the router with middleware and CORS.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(utils.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", s.app.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.healthHandler)
		r.Post("/evaluate", s.evaluateHandler)
		r.Post("/evaluate/batch", s.batchHandler)
		r.Get("/stats", s.statsHandler)
		r.Post("/stats/reset", s.resetStatsHandler)
		r.Get("/evaluations", s.listEvaluationsHandler)
		r.Get("/evaluations/{id}", s.getEvaluationHandler)
		r.Get("/dashboard", s.dashboardHandler)
		r.Get("/rules", s.rulesHandler)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.app.Config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Response{Success: status == http.StatusOK, Data: report})
}

func (s *Server) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	profiles, isArray, err := utils.DecodeProfilesJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if isArray {
		writeError(w, http.StatusBadRequest, "use /api/evaluate/batch for lists of profiles")
		return
	}

	result := s.app.Engine.Evaluate(profiles[0])
	if err := s.app.Recorder.Record(r.Context(), "", result); err != nil {
		s.logger.Warn("Evaluation recorded with errors", zap.String("id", result.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	batchID := uuid.New().String()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		if err := utils.PreflightCSV(string(body)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		result := handlers.ProcessCSV(r.Context(), s.app.Engine, s.app.Recorder, batchID, string(body))
		writeJSON(w, http.StatusOK, Response{Success: result.Summary.Total > 0, Message: result.Message, Data: result})
		return
	}

	profiles, _, err := utils.DecodeProfilesJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(profiles) > handlers.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "too many profiles in one request")
		return
	}

	results, err := s.app.Engine.EvaluateBatch(profiles)
	resp := handlers.BatchResponse{Results: results}
	if err != nil {
		s.logger.Error("Batch evaluation had defects", zap.String("batch_id", batchID), zap.Error(err))
		resp.Errors = append(resp.Errors, err.Error())
	}
	if err := s.app.Recorder.Record(r.Context(), batchID, results...); err != nil {
		s.logger.Warn("Batch recorded with errors", zap.String("batch_id", batchID), zap.Error(err))
	}
	resp.Summary = s.app.Engine.Summarize(batchID, results)
	writeJSON(w, http.StatusOK, Response{Success: true, Data: resp})
}

func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: s.app.Engine.Stats()})
}

func (s *Server) resetStatsHandler(w http.ResponseWriter, _ *http.Request) {
	s.app.Engine.ResetStats()
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "statistics reset"})
}

func (s *Server) listEvaluationsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := s.app.Store.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list evaluations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list evaluations")
		return
	}
	if recs == nil {
		recs = []*models.EvaluationRecord{}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: recs})
}

func (s *Server) getEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	rec, err := s.app.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, models.ErrEvaluationNotFound) {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to get evaluation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get evaluation")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: rec})
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	summary, err := s.app.Store.Dashboard(r.Context())
	if err != nil {
		s.logger.Error("Failed to build dashboard", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: summary})
}

func (s *Server) rulesHandler(w http.ResponseWriter, _ *http.Request) {
	cfg := s.app.Rules
	resp := RulesResponse{
		Version:    cfg.Version,
		Hash:       cfg.Hash,
		Source:     cfg.Source,
		Weights:    cfg.Weights,
		Thresholds: cfg.Thresholds,
		Rules:      make([]models.ActivatedRule, 0, len(cfg.Rules)),
	}
	for i := range cfg.Rules {
		resp.Rules = append(resp.Rules, cfg.Rules[i].Activation())
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: resp})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.app.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "evaluation store is not configured")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
