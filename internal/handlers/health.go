package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// HealthChecker is a dependency whose connectivity the health check reports.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CatalogVersioner reports the active product catalog version.
type CatalogVersioner interface {
	Version() string
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db      HealthChecker
	catalog CatalogVersioner
}

// NewHealthHandler creates a new health handler. db may be nil when run
// persistence is not configured.
func NewHealthHandler(db HealthChecker, catalog CatalogVersioner) *HealthHandler {
	return &HealthHandler{db: db, catalog: catalog}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	Stage          string `json:"stage"`
	Database       string `json:"database,omitempty"`
	CatalogVersion string `json:"catalog_version,omitempty"`
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("GET")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "underwriting-engine",
		Version:   getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Stage:     getEnvOrDefault("STAGE", "unknown"),
	}
	if h.catalog != nil {
		response.CatalogVersion = h.catalog.Version()
	}

	// Check database connectivity
	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
		} else {
			response.Database = "connected"
		}
	} else {
		response.Database = "not configured"
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return jsonResponse(headers, statusCode, Response{Success: statusCode == http.StatusOK, Data: response})
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
