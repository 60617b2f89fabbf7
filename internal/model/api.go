package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxPromptLength bounds user prompts. Longer prompts are rejected rather
// than truncated so the UI can surface the limit.
const maxPromptLength = 4000

// StartSessionRequest is the request payload for POST /v1/sessions.
type StartSessionRequest struct {
	Prompt       string `json:"prompt"`
	DatabaseType string `json:"database_type"`
	// IncludeVisualization appends the optional visualization stage.
	IncludeVisualization bool `json:"include_visualization,omitempty"`
	// Speed is the initial reveal rate in characters per second.
	// Zero means the server default.
	Speed int `json:"speed,omitempty"`
}

// StartSessionResponse is returned after a pipeline run begins.
type StartSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	ProjectID uuid.UUID `json:"project_id,omitempty"`
	Tasks     []Task    `json:"tasks"`
}

// SetSpeedRequest is the request payload for PUT /v1/sessions/{id}/speed.
type SetSpeedRequest struct {
	Speed int `json:"speed"`
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error codes returned in ErrorDetail.Code.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ValidatePrompt checks that a user prompt is usable: non-blank and within
// the length bound.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("model: prompt is required")
	}
	if len(prompt) > maxPromptLength {
		return fmt.Errorf("model: prompt exceeds %d characters", maxPromptLength)
	}
	return nil
}

// NormalizeDatabaseType canonicalizes the requested database type.
// Unknown values pass through trimmed; an empty value gets the default.
func NormalizeDatabaseType(dbType string) string {
	t := strings.TrimSpace(dbType)
	if t == "" {
		return "PostgreSQL"
	}
	switch strings.ToLower(t) {
	case "postgres", "postgresql":
		return "PostgreSQL"
	case "mysql":
		return "MySQL"
	case "sqlite", "sqlite3":
		return "SQLite"
	case "mongodb", "mongo":
		return "MongoDB"
	}
	return t
}
