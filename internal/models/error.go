package models

import "errors"

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidFileType  = "INVALID_FILE_TYPE"
	ErrCodeUpstreamFailed   = "UPSTREAM_FAILED"
)

// NewErrorResponse builds an ErrorResponse without details
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: message, Code: code}
}

// ErrNotFound is returned by stores when a record does not exist
var ErrNotFound = errors.New("not found")

// MessageResponse is a plain acknowledgment body
type MessageResponse struct {
	Message string `json:"message"`
}
