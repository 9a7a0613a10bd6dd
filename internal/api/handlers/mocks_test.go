package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/services/documents"
)

// MockDocumentService is a mock implementation of documents.Service.
type MockDocumentService struct {
	mock.Mock
}

func docResult(args mock.Arguments) (models.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockDocumentService) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDocumentService) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDocumentService) FindAll(ctx context.Context, selector models.Selector) ([]models.Document, error) {
	args := m.Called(ctx, selector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockDocumentService) Find(ctx context.Context, id interface{}) (models.Document, error) {
	return docResult(m.Called(ctx, id))
}

func (m *MockDocumentService) FindBy(ctx context.Context, selector models.Selector) (models.Document, error) {
	return docResult(m.Called(ctx, selector))
}

func (m *MockDocumentService) Insert(ctx context.Context, doc models.Document) (models.Document, error) {
	return docResult(m.Called(ctx, doc))
}

func (m *MockDocumentService) Update(ctx context.Context, id interface{}, doc models.Document, opts ...documents.UpdateOption) (models.Document, error) {
	return docResult(m.Called(ctx, id, doc, len(opts)))
}

func (m *MockDocumentService) UpdateBy(ctx context.Context, selector models.Selector, sort models.Sort, doc models.Document, opts ...documents.UpdateOption) (models.Document, error) {
	return docResult(m.Called(ctx, selector, sort, doc, len(opts)))
}

func (m *MockDocumentService) UpdatePartial(ctx context.Context, id interface{}, fields models.Document, opts ...documents.UpdateOption) (models.Document, error) {
	return docResult(m.Called(ctx, id, fields, len(opts)))
}

func (m *MockDocumentService) UpdatePartialBy(ctx context.Context, selector models.Selector, sort models.Sort, fields models.Document, opts ...documents.UpdateOption) (models.Document, error) {
	return docResult(m.Called(ctx, selector, sort, fields, len(opts)))
}

func (m *MockDocumentService) Remove(ctx context.Context, id interface{}) (models.Document, error) {
	return docResult(m.Called(ctx, id))
}

func (m *MockDocumentService) RemoveBy(ctx context.Context, selector models.Selector, sort models.Sort) (models.Document, error) {
	return docResult(m.Called(ctx, selector, sort))
}

// MockPinger is a mock implementation of handlers.Pinger.
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "failed to parse JSON response")
}

func assertStatusCode(t *testing.T, expected int, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, expected, w.Code, "unexpected status code: %s", w.Body.String())
}
