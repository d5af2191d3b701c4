package dto

import "stockkeeper/internal/core/code"

// CodeResponse is an allocated or previewed code.
type CodeResponse struct {
	EntityType string `json:"entityType"`
	Code       string `json:"code"`
}

// ParsedCodeResponse breaks a code into its parts.
type ParsedCodeResponse struct {
	Code         string `json:"code"`
	Abbreviation string `json:"abbreviation"`
	EntityType   string `json:"entityType,omitempty"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	Sequence     int    `json:"sequence"`
	Bucket       string `json:"bucket"`
}

// FromCodeParts creates ParsedCodeResponse from code.Parts.
func FromCodeParts(raw string, p code.Parts) ParsedCodeResponse {
	resp := ParsedCodeResponse{
		Code:         raw,
		Abbreviation: p.Abbreviation,
		Month:        p.Month,
		Year:         p.Year,
		Sequence:     p.Sequence,
		Bucket:       p.Bucket().String(),
	}
	if t, ok := code.EntityTypeFor(p.Abbreviation); ok {
		resp.EntityType = string(t)
	}
	return resp
}
