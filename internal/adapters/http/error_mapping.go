package httpadapter

import (
	"net/http"
	"strings"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrProviderUnavailable),
		domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}

// writeDomainError hides internal causes; only caller errors echo a message.
func writeDomainError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := "evidence search failed"
	switch status {
	case http.StatusBadRequest:
		message = callerMessage(err)
	case http.StatusUnauthorized:
		message = "unauthorized"
	case http.StatusServiceUnavailable:
		message = "evidence search temporarily unavailable"
	}
	writeError(w, status, errorCodeForStatus(status), message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// callerMessage strips the "op: kind: " prefix added by domain.WrapError.
func callerMessage(err error) string {
	msg := err.Error()
	marker := domain.ErrInvalidInput.Error() + ": "
	if idx := strings.Index(msg, marker); idx >= 0 {
		return msg[idx+len(marker):]
	}
	return msg
}
