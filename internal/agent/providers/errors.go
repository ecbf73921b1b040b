package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GatewayErrorKind categorizes why a Gateway call failed. This is the
// spec's 5-way collapse of a richer provider-internal taxonomy: the Loop
// only needs to know whether the failure is worth surfacing differently,
// not which of several provider-specific billing/content-filter/
// model-unavailable cases it was.
type GatewayErrorKind string

const (
	// KindTransientNetwork covers connection resets, DNS failures, and
	// request timeouts — worth a caller-level retry.
	KindTransientNetwork GatewayErrorKind = "transient_network"

	// KindRateLimited covers HTTP 429 / provider rate-limit responses.
	KindRateLimited GatewayErrorKind = "rate_limited"

	// KindAuthFailed covers invalid or expired credentials.
	KindAuthFailed GatewayErrorKind = "auth_failed"

	// KindInvalidRequest covers malformed requests: bad model name,
	// oversized payload, schema violations.
	KindInvalidRequest GatewayErrorKind = "invalid_request"

	// KindProviderInternal covers 5xx responses and anything else the
	// provider itself reports as its own fault.
	KindProviderInternal GatewayErrorKind = "provider_internal"
)

// IsRetryable reports whether a caller (the Agent Loop, at a future turn)
// might reasonably expect the same request to succeed unchanged.
func (k GatewayErrorKind) IsRetryable() bool {
	switch k {
	case KindTransientNetwork, KindRateLimited, KindProviderInternal:
		return true
	default:
		return false
	}
}

// GatewayError is the structured error every Gateway implementation
// returns on failure. The Gateway never retries on its own: classification
// only informs what a caller does next.
type GatewayError struct {
	Kind      GatewayErrorKind
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether this failure is worth a caller-level retry.
// Exposed as a plain method (rather than requiring callers to import this
// package) so internal/agent can duck-type against it without creating an
// import cycle, since this package already imports internal/agent for the
// Gateway interface.
func (e *GatewayError) Retryable() bool {
	return e.Kind.IsRetryable()
}

// NewGatewayError builds a GatewayError, classifying cause's message.
func NewGatewayError(provider, model string, cause error) *GatewayError {
	err := &GatewayError{
		Provider: provider,
		Model:    model,
		Cause:    cause,
		Kind:     KindProviderInternal,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Kind = ClassifyError(cause)
	}
	return err
}

// WithStatus sets the HTTP status and reclassifies from it.
func (e *GatewayError) WithStatus(status int) *GatewayError {
	e.Status = status
	e.Kind = classifyStatusCode(status)
	return e
}

// WithCode sets the provider error code and reclassifies from known codes.
func (e *GatewayError) WithCode(code string) *GatewayError {
	e.Code = code
	if kind, ok := classifyErrorCode(code); ok {
		e.Kind = kind
	}
	return e
}

// WithRequestID sets the provider's request id for debugging.
func (e *GatewayError) WithRequestID(id string) *GatewayError {
	e.RequestID = id
	return e
}

// ClassifyError inspects an error's message and returns the best-guess
// GatewayErrorKind. Used when a provider SDK surfaces a plain error
// rather than a structured API error with a status code.
func ClassifyError(err error) GatewayErrorKind {
	if err == nil {
		return KindProviderInternal
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "context deadline"),
		strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "econnreset"),
		strings.Contains(errStr, "etimedout"),
		strings.Contains(errStr, "dns"):
		return KindTransientNetwork

	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "rate_limit"),
		strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "429"):
		return KindRateLimited

	case strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "invalid api key"),
		strings.Contains(errStr, "invalid_api_key"),
		strings.Contains(errStr, "authentication"),
		strings.Contains(errStr, "401"),
		strings.Contains(errStr, "403"):
		return KindAuthFailed

	case strings.Contains(errStr, "invalid"),
		strings.Contains(errStr, "validation"),
		strings.Contains(errStr, "bad request"),
		strings.Contains(errStr, "400"):
		return KindInvalidRequest

	case strings.Contains(errStr, "internal server"),
		strings.Contains(errStr, "server error"),
		strings.Contains(errStr, "500"),
		strings.Contains(errStr, "502"),
		strings.Contains(errStr, "503"),
		strings.Contains(errStr, "504"):
		return KindProviderInternal

	default:
		return KindProviderInternal
	}
}

func classifyStatusCode(status int) GatewayErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailed
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case status >= 500:
		return KindProviderInternal
	case status == 0:
		return KindTransientNetwork
	default:
		return KindProviderInternal
	}
}

func classifyErrorCode(code string) (GatewayErrorKind, bool) {
	switch strings.ToLower(code) {
	case "rate_limit_error", "rate_limit_exceeded":
		return KindRateLimited, true
	case "authentication_error", "invalid_api_key":
		return KindAuthFailed, true
	case "invalid_request_error":
		return KindInvalidRequest, true
	case "server_error", "internal_error":
		return KindProviderInternal, true
	default:
		return "", false
	}
}

// IsGatewayError checks if an error is or wraps a GatewayError.
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

// GetGatewayError extracts a GatewayError from an error chain.
func GetGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// IsRetryable reports whether err (classified if necessary) is worth a
// caller-level retry.
func IsRetryable(err error) bool {
	if gwErr, ok := GetGatewayError(err); ok {
		return gwErr.Kind.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}
