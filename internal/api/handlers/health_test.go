package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/docstore/internal/api/dto"
	"github.com/unifiedui/docstore/internal/api/handlers"
)

func TestHealthHandler_Health_AllHealthy(t *testing.T) {
	// Setup
	mockCache := new(MockPinger)
	mockDocDB := new(MockPinger)
	mockCache.On("Ping", mock.Anything).Return(nil)
	mockDocDB.On("Ping", mock.Anything).Return(nil)

	handler := handlers.NewHealthHandler(map[string]handlers.Pinger{"cache": mockCache, "docdb": mockDocDB})
	router := setupTestRouter()
	router.GET("/health", handler.Health)

	// Execute
	w := performRequest(router, http.MethodGet, "/health", nil)

	// Assert
	assertStatusCode(t, http.StatusOK, w)
	var response dto.HealthResponse
	parseJSONResponse(t, w, &response)
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "healthy", response.Components["cache"])
	assert.Equal(t, "healthy", response.Components["docdb"])
	mockCache.AssertExpectations(t)
	mockDocDB.AssertExpectations(t)
}

func TestHealthHandler_Health_DocDBUnhealthy(t *testing.T) {
	mockDocDB := new(MockPinger)
	mockDocDB.On("Ping", mock.Anything).Return(assert.AnError)

	handler := handlers.NewHealthHandler(map[string]handlers.Pinger{"docdb": mockDocDB, "cache": nil})
	router := setupTestRouter()
	router.GET("/health", handler.Health)

	w := performRequest(router, http.MethodGet, "/health", nil)

	assertStatusCode(t, http.StatusServiceUnavailable, w)
	var response dto.HealthResponse
	parseJSONResponse(t, w, &response)
	assert.Equal(t, "unhealthy", response.Status)
	assert.Equal(t, "unhealthy", response.Components["docdb"])
	assert.NotContains(t, response.Components, "cache")
}

func TestHealthHandler_Ready(t *testing.T) {
	ok := handlers.PingFunc(func(ctx context.Context) error { return nil })
	down := handlers.PingFunc(func(ctx context.Context) error { return assert.AnError })

	tests := []struct {
		name       string
		components map[string]handlers.Pinger
		wantStatus int
		wantReason string
	}{
		{name: "all ready", components: map[string]handlers.Pinger{"cache": ok, "docdb": ok}, wantStatus: http.StatusOK},
		{name: "cache down", components: map[string]handlers.Pinger{"cache": down, "docdb": ok}, wantStatus: http.StatusServiceUnavailable, wantReason: "cache unavailable"},
		{name: "docdb down", components: map[string]handlers.Pinger{"cache": ok, "docdb": down}, wantStatus: http.StatusServiceUnavailable, wantReason: "docdb unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/ready", handlers.NewHealthHandler(tt.components).Ready)

			w := performRequest(router, http.MethodGet, "/ready", nil)

			assertStatusCode(t, tt.wantStatus, w)
			var response map[string]string
			parseJSONResponse(t, w, &response)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, response["reason"])
			} else {
				assert.Equal(t, "ready", response["status"])
			}
		})
	}
}

func TestHealthHandler_Live(t *testing.T) {
	router := setupTestRouter()
	router.GET("/live", handlers.NewHealthHandler(nil).Live)

	w := performRequest(router, http.MethodGet, "/live", nil)

	assertStatusCode(t, http.StatusOK, w)
}
