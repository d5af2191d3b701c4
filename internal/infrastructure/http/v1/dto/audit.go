package dto

import "stockkeeper/internal/domain/audit"

// AuditQuery bounds an audit history listing.
type AuditQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// AuditHistoryResponse lists the audit entries of one record.
type AuditHistoryResponse struct {
	EntityType string        `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Items      []audit.Entry `json:"items"`
}
