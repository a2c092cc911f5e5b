package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/skyfuse/skyfuse/internal/api/models"
	"github.com/skyfuse/skyfuse/internal/api/response"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version        string
	buildTime      string
	providerStatus func() []models.ProviderStatus
}

// NewOpsHandler creates a new OpsHandler. providerStatus may be nil when no
// providers are wired (tests).
func NewOpsHandler(version, buildTime string, providerStatus func() []models.ProviderStatus) *OpsHandler {
	return &OpsHandler{
		version:        version,
		buildTime:      buildTime,
		providerStatus: providerStatus,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now(),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider circuit states.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   time.Now(),
	}
	if h.providerStatus != nil {
		status.Providers = h.providerStatus()
		for _, p := range status.Providers {
			if p.CircuitState != "closed" {
				status.Status = models.HealthStatusDegraded
			}
		}
	}
	response.JSON(w, r, http.StatusOK, status)
}

// parsePositiveInt parses an integer in [1, max].
func parsePositiveInt(raw string, max int) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 1 || v > max {
		return 0, fmt.Errorf("out of range: %d", v)
	}
	return v, nil
}
