package http

import (
	"context"
	"errors"
	"strings"
)

// ErrorType classifies transport and server failures.
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates an authentication failure (401/403, expired token)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates connection issues (timeouts, resets, refused)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors worth retrying (5xx, throttling)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates errors that retrying will not fix
	ErrorTypeFatal
	// ErrorTypeCancelled indicates the caller cancelled the operation
	ErrorTypeCancelled
)

// ClassifyError determines the error type from the error chain and message.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "expired") ||
		strings.Contains(errStr, "invalid token") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") {
		return ErrorTypeCredential
	}

	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "service unavailable") {
		return ErrorTypeRetryable
	}

	return ErrorTypeFatal
}

// IsRetryable reports whether a caller-initiated retry may succeed.
func IsRetryable(err error) bool {
	switch ClassifyError(err) {
	case ErrorTypeNetwork, ErrorTypeRetryable:
		return true
	}
	return false
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	case ErrorTypeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
