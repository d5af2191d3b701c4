package handlers

import (
	"github.com/gin-gonic/gin"

	"stockkeeper/internal/core/code"
	"stockkeeper/internal/domain/audit"
	"stockkeeper/internal/infrastructure/http/v1/dto"
)

// AuditHandler serves the audit trail of deleted records.
type AuditHandler struct {
	*BaseHandler
	reader audit.Reader
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, reader audit.Reader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

// History lists audit entries of one record, newest first.
// GET /audit/:entityType/:id
func (h *AuditHandler) History(c *gin.Context) {
	t, err := code.ParseEntityType(c.Param("entityType"))
	if err != nil {
		h.Error(c, err)
		return
	}
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.AuditQuery
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := h.reader.History(c.Request.Context(), string(t), entityID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	h.OK(c, dto.AuditHistoryResponse{
		EntityType: string(t),
		EntityID:   entityID.String(),
		Items:      entries,
	})
}
