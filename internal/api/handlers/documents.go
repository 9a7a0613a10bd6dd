package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/docstore/internal/api/dto"
	"github.com/unifiedui/docstore/internal/api/middleware"
	"github.com/unifiedui/docstore/internal/domain/errors"
	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/services/documents"
)

// DocumentsHandler exposes the document access layer over HTTP.
type DocumentsHandler struct {
	service documents.Service
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(service documents.Service) *DocumentsHandler {
	return &DocumentsHandler{service: service}
}

// Connect handles POST /connection.
func (h *DocumentsHandler) Connect(c *gin.Context) {
	if err := h.service.Connect(c.Request.Context()); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Disconnect handles DELETE /connection.
func (h *DocumentsHandler) Disconnect(c *gin.Context) {
	if err := h.service.Disconnect(c.Request.Context()); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// List handles GET /documents. Query parameters form an equality selector.
func (h *DocumentsHandler) List(c *gin.Context) {
	raw := make(map[string]interface{})
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}
	h.findAll(c, raw)
}

// Search handles POST /documents/search.
func (h *DocumentsHandler) Search(c *gin.Context) {
	var req dto.SelectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	h.findAll(c, req.Selector)
}

func (h *DocumentsHandler) findAll(c *gin.Context, raw map[string]interface{}) {
	selector, err := dto.ToSelector(raw)
	if err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid selector", err.Error()))
		return
	}

	docs, err := h.service.FindAll(c.Request.Context(), selector)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListDocumentsResponse{Documents: docs, Total: len(docs)})
}

// FindOne handles POST /documents/find-one.
func (h *DocumentsHandler) FindOne(c *gin.Context) {
	var req dto.SelectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	selector, err := dto.ToSelector(req.Selector)
	if err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid selector", err.Error()))
		return
	}
	if selector == nil {
		selector = models.Selector{}
	}

	doc, err := h.service.FindBy(c.Request.Context(), selector)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DocumentResponse{Document: doc})
}

// Get handles GET /documents/:id.
func (h *DocumentsHandler) Get(c *gin.Context) {
	doc, err := h.service.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DocumentResponse{Document: doc})
}

// Create handles POST /documents.
func (h *DocumentsHandler) Create(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	doc, err := h.service.Insert(c.Request.Context(), models.Document(body))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.DocumentResponse{Document: doc})
}

// Replace handles PUT /documents/:id.
func (h *DocumentsHandler) Replace(c *gin.Context) {
	h.updateByID(c, false)
}

// Patch handles PATCH /documents/:id.
func (h *DocumentsHandler) Patch(c *gin.Context) {
	h.updateByID(c, true)
}

func (h *DocumentsHandler) updateByID(c *gin.Context, partial bool) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	var opts []documents.UpdateOption
	if preserve, _ := strconv.ParseBool(c.Query("preserveModified")); preserve {
		opts = append(opts, documents.PreserveModified())
	}

	var (
		doc models.Document
		err error
	)
	if partial {
		doc, err = h.service.UpdatePartial(c.Request.Context(), c.Param("id"), body, opts...)
	} else {
		doc, err = h.service.Update(c.Request.Context(), c.Param("id"), body, opts...)
	}
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DocumentResponse{Document: doc})
}

// ReplaceBy handles PUT /documents.
func (h *DocumentsHandler) ReplaceBy(c *gin.Context) {
	h.updateBy(c, false)
}

// PatchBy handles PATCH /documents.
func (h *DocumentsHandler) PatchBy(c *gin.Context) {
	h.updateBy(c, true)
}

func (h *DocumentsHandler) updateBy(c *gin.Context, partial bool) {
	var req dto.UpdateByRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	selector, err := dto.ToSelector(req.Selector)
	if err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid selector", err.Error()))
		return
	}

	var opts []documents.UpdateOption
	if req.PreserveModified {
		opts = append(opts, documents.PreserveModified())
	}

	var doc models.Document
	if partial {
		doc, err = h.service.UpdatePartialBy(c.Request.Context(), selector, dto.ToSort(req.Sort), req.Document, opts...)
	} else {
		doc, err = h.service.UpdateBy(c.Request.Context(), selector, dto.ToSort(req.Sort), req.Document, opts...)
	}
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DocumentResponse{Document: doc})
}

// Delete handles DELETE /documents/:id.
func (h *DocumentsHandler) Delete(c *gin.Context) {
	doc, err := h.service.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DocumentResponse{Document: doc})
}

// DeleteBy handles DELETE /documents with a target in the body.
func (h *DocumentsHandler) DeleteBy(c *gin.Context) {
	var req dto.TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	selector, err := dto.ToSelector(req.Selector)
	if err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid selector", err.Error()))
		return
	}

	doc, err := h.service.RemoveBy(c.Request.Context(), selector, dto.ToSort(req.Sort))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DocumentResponse{Document: doc})
}
