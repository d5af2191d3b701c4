package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/infrastructure/http/v1/dto"
)

// OpnameHandler handles HTTP requests for stock counts.
type OpnameHandler struct {
	*BaseHandler
	service     *opname.Service
	adjustments *adjustment.Service
}

// NewOpnameHandler creates a new opname handler. Adjustments of a count
// are created through it.
func NewOpnameHandler(base *BaseHandler, service *opname.Service, adjustments *adjustment.Service) *OpnameHandler {
	return &OpnameHandler{BaseHandler: base, service: service, adjustments: adjustments}
}

// Create handles POST /opnames.
func (h *OpnameHandler) Create(c *gin.Context) {
	var req dto.CreateOpnameRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in := req.ToInput(h.now())

	var created *opname.Opname
	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		o, err := h.service.Record(ctx, in)
		created = o
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}

// Get handles GET /opnames/:id.
func (h *OpnameHandler) Get(c *gin.Context) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	o, err := h.service.Get(c.Request.Context(), opnameID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// List handles GET /opnames.
func (h *OpnameHandler) List(c *gin.Context) {
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

// UpdateItems handles PUT /opnames/:id/items.
func (h *OpnameHandler) UpdateItems(c *gin.Context) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOpnameItemsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inputs := req.ToInputs()

	var updated *opname.Opname
	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		o, err := h.service.UpdateItems(ctx, opnameID, inputs)
		updated = o
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// UpdateNotes handles PATCH /opnames/:id/notes.
func (h *OpnameHandler) UpdateNotes(c *gin.Context) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOpnameNotesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in := req.ToInput()

	var updated *opname.Opname
	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		o, err := h.service.UpdateNotes(ctx, opnameID, in)
		updated = o
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Reconcile handles POST /opnames/:id/reconcile.
func (h *OpnameHandler) Reconcile(c *gin.Context) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var reconciled *opname.Opname
	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		o, err := h.service.Reconcile(ctx, opnameID)
		reconciled = o
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReconciled(reconciled))
}

// Delete handles DELETE /opnames/:id.
func (h *OpnameHandler) Delete(c *gin.Context) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		return h.service.Delete(ctx, opnameID)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// CreateAdjustment handles POST /opnames/:id/adjustment. The body is optional.
func (h *OpnameHandler) CreateAdjustment(c *gin.Context) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateOpnameAdjustmentRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	in := req.ToInput(opnameID)

	var created *adjustment.ManagementStock
	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		m, err := h.adjustments.CreateFromOpname(ctx, in)
		created = m
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}
