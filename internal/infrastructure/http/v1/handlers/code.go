package handlers

import (
	"github.com/gin-gonic/gin"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/code"
	"stockkeeper/internal/core/numerator"
	"stockkeeper/internal/infrastructure/http/v1/dto"
)

// CodeHandler exposes sequential code allocation.
type CodeHandler struct {
	*BaseHandler
	generator numerator.Generator
}

// NewCodeHandler creates a new code handler.
func NewCodeHandler(base *BaseHandler, generator numerator.Generator) *CodeHandler {
	return &CodeHandler{BaseHandler: base, generator: generator}
}

func (h *CodeHandler) entityType(c *gin.Context) (code.EntityType, bool) {
	t, err := code.ParseEntityType(c.Param("entityType"))
	if err != nil {
		h.Error(c, err)
		return "", false
	}
	return t, true
}

// Allocate consumes the next code of an entity type.
// POST /codes/:entityType
func (h *CodeHandler) Allocate(c *gin.Context) {
	t, ok := h.entityType(c)
	if !ok {
		return
	}

	value, err := h.generator.Next(c.Request.Context(), t, h.now())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.CodeResponse{EntityType: string(t), Code: value})
}

// Peek previews the next code without consuming it.
// GET /codes/:entityType/next
func (h *CodeHandler) Peek(c *gin.Context) {
	t, ok := h.entityType(c)
	if !ok {
		return
	}

	value, err := h.generator.Peek(c.Request.Context(), t, h.now())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CodeResponse{EntityType: string(t), Code: value})
}

// Parse breaks a code into its parts.
// GET /codes/parse?code=SOP/05/2024/0001
func (h *CodeHandler) Parse(c *gin.Context) {
	raw := c.Query("code")
	if raw == "" {
		h.Error(c, apperror.NewValidation("code query parameter is required").WithDetail("field", "code"))
		return
	}

	parts, err := code.Parse(raw)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCodeParts(raw, parts))
}
