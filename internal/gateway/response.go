package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FabG/chainlit-ui/internal/runtime"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeSessionEnded   = "SESSION_ENDED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeNotConfigured  = "NOT_CONFIGURED"
	ErrCodeUnavailable    = "UNAVAILABLE"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeErrorWithDetails writes an error response with details.
func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeRuntimeError maps a runtime error onto status and code.
func writeRuntimeError(w http.ResponseWriter, err error) {
	status, detail := classifyError(err)
	writeErrorWithDetails(w, status, detail.Code, detail.Message, detail.Details)
}

// classifyError translates a runtime error into an HTTP status and error
// detail. Unknown-name errors carry their suggestion in details so the UI can
// render it.
func classifyError(err error) (int, ErrorDetail) {
	detail := ErrorDetail{Message: err.Error()}

	var unknownAction *runtime.UnknownActionError
	if errors.As(err, &unknownAction) {
		detail.Code = ErrCodeNotFound
		detail.Details = suggestionDetails(unknownAction.Suggestion)
		return http.StatusNotFound, detail
	}
	var unknownProfile *runtime.UnknownProfileError
	if errors.As(err, &unknownProfile) {
		detail.Code = ErrCodeInvalidRequest
		detail.Details = suggestionDetails(unknownProfile.Suggestion)
		return http.StatusBadRequest, detail
	}

	switch {
	case errors.Is(err, runtime.ErrSessionNotFound):
		detail.Code = ErrCodeNotFound
		return http.StatusNotFound, detail
	case errors.Is(err, runtime.ErrDuplicateSession):
		detail.Code = ErrCodeConflict
		return http.StatusConflict, detail
	case errors.Is(err, runtime.ErrSessionEnded):
		detail.Code = ErrCodeSessionEnded
		return http.StatusConflict, detail
	case errors.Is(err, runtime.ErrRegistryClosed):
		detail.Code = ErrCodeUnavailable
		return http.StatusServiceUnavailable, detail
	default:
		detail.Code = ErrCodeInternalError
		return http.StatusInternalServerError, detail
	}
}

func suggestionDetails(suggestion string) map[string]any {
	if suggestion == "" {
		return nil
	}
	return map[string]any{"suggestion": suggestion}
}
