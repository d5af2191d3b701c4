package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, service: service}
}

// Create handles POST /products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var created *product.Product
	err := h.Retry(c.Request.Context(), func(ctx context.Context) error {
		p, err := h.service.Create(ctx, req.ToInput())
		created = p
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// List handles GET /products.
func (h *ProductHandler) List(c *gin.Context) {
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

// Movements handles GET /products/:id/movements (the stock card).
func (h *ProductHandler) Movements(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.MovementsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	res, err := h.service.Movements(c.Request.Context(), productID, q.Limit, q.Offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
