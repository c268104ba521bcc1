package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"mihac/internal/services/rules"
)

// HealthChecker is anything that can report its own connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store HealthChecker
	rules *rules.RuleConfig
}

// NewHealthHandler creates a new health handler. store may be nil when
// persistence is disabled.
func NewHealthHandler(store HealthChecker, cfg *rules.RuleConfig) *HealthHandler {
	return &HealthHandler{store: store, rules: cfg}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	Service      string `json:"service"`
	Version      string `json:"version"`
	Stage        string `json:"stage"`
	Store        string `json:"store"`
	RulesVersion string `json:"rules_version,omitempty"`
	RulesHash    string `json:"rules_hash,omitempty"`
	RuleCount    int    `json:"rule_count"`
}

// Check builds the health report. Status is "degraded" when the store is
// configured but unreachable.
func (h *HealthHandler) Check(ctx context.Context) HealthResponse {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "mihac",
		Version:   getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Stage:     getEnvOrDefault("STAGE", "unknown"),
	}

	if h.rules != nil {
		response.RulesVersion = h.rules.Version
		response.RulesHash = h.rules.Hash
		response.RuleCount = len(h.rules.Rules)
	}

	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			response.Store = "disconnected"
			response.Status = "degraded"
		} else {
			response.Store = "connected"
		}
	} else {
		response.Store = "not configured"
	}

	return response
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	response := h.Check(ctx)

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	return jsonResponse(statusCode, response)
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
