package api

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/jneless/bkp-drive/internal/http"
)

// ErrAuthMissing is returned, without contacting the server, when an
// authenticated operation is attempted with no token.
var ErrAuthMissing = errors.New("not logged in")

// ErrCancelled marks a batch stopped by the user between steps.
var ErrCancelled = errors.New("cancelled by user")

// NetworkError is a transport failure, or a non-2xx response without a
// JSON error envelope.
type NetworkError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: network failure: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports whether trying again may succeed.
func (e *NetworkError) Retryable() bool {
	if e.StatusCode >= 500 || e.StatusCode == nethttp.StatusTooManyRequests {
		return true
	}
	return e.StatusCode == 0 && http.IsRetryable(e.Err)
}

// APIError is a well-formed response reporting success:false.
type APIError struct {
	Op          string
	StatusCode  int
	Message     string
	FailedItems []string // batch operations only
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request rejected"
	}
	if len(e.FailedItems) > 0 {
		return fmt.Sprintf("%s: %s (%d failed: %s)", e.Op, msg, len(e.FailedItems), strings.Join(e.FailedItems, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// SkippedPath is a folder whose listing failed during a recursive scan.
type SkippedPath struct {
	Path string
	Err  error
}

// PartialScanError aborts a strict delete plan when sub-paths could not be listed.
type PartialScanError struct {
	Skipped []SkippedPath
}

func (e *PartialScanError) Error() string {
	paths := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		paths[i] = s.Path
	}
	return fmt.Sprintf("folder scan incomplete, %d path(s) could not be listed: %s",
		len(e.Skipped), strings.Join(paths, ", "))
}

// IsAuthMissing reports whether err means no usable token: either none was
// set, or the server rejected the one we sent.
func IsAuthMissing(err error) bool {
	if errors.Is(err, ErrAuthMissing) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == nethttp.StatusUnauthorized
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.StatusCode == nethttp.StatusUnauthorized
	}
	return false
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsAPI reports whether err is an APIError.
func IsAPI(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsCancelled reports whether err stems from user cancellation, either the
// cooperative batch flag or a cancelled context.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsPartialScan reports whether err is a PartialScanError.
func IsPartialScan(err error) bool {
	var scanErr *PartialScanError
	return errors.As(err, &scanErr)
}

// IsAlreadyExists detects "folder/file already exists" responses, by 409
// status or by message.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == nethttp.StatusConflict {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{"already exists", "duplicate", "conflict", "file exists"} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// Message returns the text to show a user for err.
func Message(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthMissing):
		return "not logged in, run 'bkp-drive login' first"
	case IsCancelled(err):
		return "operation cancelled"
	case IsPartialScan(err):
		return err.Error() + "; nothing was deleted"
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == nethttp.StatusUnauthorized {
			return "session expired or invalid, please log in again"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	case IsNetwork(err):
		return "could not reach the server: " + err.Error()
	}
	return err.Error()
}
