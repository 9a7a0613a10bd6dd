package dto

import "github.com/unifiedui/docstore/internal/domain/models"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
	Field   string      `json:"field,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// DocumentResponse wraps a single document.
type DocumentResponse struct {
	Document models.Document `json:"document"`
}

// ListDocumentsResponse wraps a list of documents.
type ListDocumentsResponse struct {
	Documents []models.Document `json:"documents"`
	Total     int               `json:"total"`
}
