package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/infrastructure/http/v1/dto"
)

// AdjustmentHandler handles HTTP requests for stock adjustments.
type AdjustmentHandler struct {
	*BaseHandler
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new adjustment handler.
func NewAdjustmentHandler(base *BaseHandler, service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{BaseHandler: base, service: service}
}

// Create handles POST /adjustments (manual IN/OUT).
func (h *AdjustmentHandler) Create(c *gin.Context) {
	var req dto.CreateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(h.now())
	if err != nil {
		h.Error(c, err)
		return
	}

	var created *adjustment.ManagementStock
	err = h.Retry(c.Request.Context(), func(ctx context.Context) error {
		m, err := h.service.CreateManual(ctx, in)
		created = m
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}

// Get handles GET /adjustments/:id.
func (h *AdjustmentHandler) Get(c *gin.Context) {
	adjustmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	m, err := h.service.Get(c.Request.Context(), adjustmentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// List handles GET /adjustments.
func (h *AdjustmentHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	res, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Update handles PATCH /adjustments/:id.
func (h *AdjustmentHandler) Update(c *gin.Context) {
	adjustmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in := req.ToInput()

	var updated *adjustment.ManagementStock
	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		m, err := h.service.UpdateHeader(ctx, adjustmentID, in)
		updated = m
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Delete handles DELETE /adjustments/:id. Stock effects are reversed.
func (h *AdjustmentHandler) Delete(c *gin.Context) {
	adjustmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		return h.service.Delete(ctx, adjustmentID)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
