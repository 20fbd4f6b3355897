package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from the embedding server.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, e.Body)
}

var (
	retryAndRecord = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	recordOnly     = resilience.ErrorClassification{RecordFailure: true}
)

// classifyOllamaError retries transport failures, overload replies and
// empty embeddings. Client errors such as an unknown model fail fast
// without tripping the breaker.
func classifyOllamaError(err error) resilience.ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return retryAndRecord
	case errors.As(err, &statusErr):
		if retryableStatus(statusErr.StatusCode) {
			return retryAndRecord
		}
		return resilience.ErrorClassification{}
	case errors.Is(err, errEmptyEmbedding), errors.As(err, &netErr):
		return retryAndRecord
	default:
		return recordOnly
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
