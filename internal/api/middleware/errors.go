// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/docstore/internal/api/dto"
	domainerrors "github.com/unifiedui/docstore/internal/domain/errors"
)

// ErrorMiddleware handles error recovery and formatting.
type ErrorMiddleware struct{}

// NewErrorMiddleware creates a new ErrorMiddleware.
func NewErrorMiddleware() *ErrorMiddleware {
	return &ErrorMiddleware{}
}

// Recovery returns a gin middleware that recovers from panics.
func (m *ErrorMiddleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger := GetRequestLogger(c)
				logger.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Str("method", c.Request.Method).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Code:    domainerrors.ErrCodeInternal,
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// HandleError sends the HTTP response for err. Domain errors keep their
// status and code; anything else from the store is reported as unavailable.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	domainErr, ok := domainerrors.GetDomainError(err)
	if !ok {
		logger := GetRequestLogger(c)
		logger.Error().Err(err).Msg("document store error")
		domainErr = domainerrors.NewServiceUnavailableError("document store", err)
	}

	c.AbortWithStatusJSON(domainErr.HTTPStatus, dto.ErrorResponse{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Details: domainErr.Details,
		Field:   domainErr.Field,
		Value:   domainErr.Value,
	})
}

// NotFound returns a 404 handler.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Code:    domainerrors.ErrCodeNotFound,
			Message: "resource not found",
			Details: c.Request.URL.Path,
		})
	}
}

// MethodNotAllowed returns a 405 handler.
func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.ErrorResponse{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
			Details: c.Request.Method,
		})
	}
}
