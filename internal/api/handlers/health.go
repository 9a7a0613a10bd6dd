// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/docstore/internal/api/dto"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	components map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler. Nil components are skipped.
func NewHealthHandler(components map[string]Pinger) *HealthHandler {
	checked := make(map[string]Pinger, len(components))
	for name, p := range components {
		if p != nil {
			checked[name] = p
		}
	}
	return &HealthHandler{components: checked}
}

// Health handles the /health endpoint.
func (h *HealthHandler) Health(c *gin.Context) {
	components := make(map[string]string, len(h.components))
	healthy := true

	for name, p := range h.components {
		if err := p.Ping(c.Request.Context()); err != nil {
			components[name] = "unhealthy"
			healthy = false
		} else {
			components[name] = "healthy"
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, dto.HealthResponse{
		Status:     status,
		Components: components,
	})
}

// Ready handles the /ready endpoint. Components are checked in name order and
// the first failure is reported.
func (h *HealthHandler) Ready(c *gin.Context) {
	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.components[name].Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": name + " unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// Live handles the /live endpoint.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
