package llm

import (
	"fmt"
	"time"
)

// ErrorKind is the closed classification of chat-completion failures.
type ErrorKind string

const (
	KindInvalidAPIKey  ErrorKind = "INVALID_API_KEY"
	KindRateLimit      ErrorKind = "RATE_LIMIT"
	KindQuotaExceeded  ErrorKind = "QUOTA_EXCEEDED"
	KindNetworkError   ErrorKind = "NETWORK_ERROR"
	KindTimeout        ErrorKind = "TIMEOUT"
	KindInvalidRequest ErrorKind = "INVALID_REQUEST"
	KindServerError    ErrorKind = "SERVER_ERROR"
	KindUnknown        ErrorKind = "UNKNOWN"
)

// Error is the classified failure surfaced by the client. Status holds
// the upstream HTTP status when one was received; RetryAfter holds the
// server-supplied retry hint when present.
type Error struct {
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	Message    string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("llm: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("llm: %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is transient. Rate limits,
// server errors, timeouts and transport failures are retried; bad
// keys, exhausted quotas, malformed requests and unusable responses
// are not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindServerError, KindTimeout, KindNetworkError:
		return true
	default:
		return false
	}
}

// Describe returns the failure in business terms, suitable for the
// reasoning text of a fallback evaluation.
func (e *Error) Describe() string {
	switch e.Kind {
	case KindInvalidAPIKey:
		return "Invalid API key"
	case KindRateLimit:
		return "Rate limit exceeded"
	case KindQuotaExceeded:
		return "Quota exceeded"
	case KindNetworkError:
		return "Network error reaching the model provider"
	case KindTimeout:
		return "Request timed out"
	case KindInvalidRequest:
		return "Invalid request rejected by the model provider"
	case KindServerError:
		return "Model provider server error"
	default:
		return "Unknown model provider error"
	}
}
