package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{context.Canceled, ErrorTypeCancelled},
		{fmt.Errorf("list: %w", context.Canceled), ErrorTypeCancelled},
		{context.DeadlineExceeded, ErrorTypeNetwork},
		{errors.New("status 401: token expired"), ErrorTypeCredential},
		{errors.New("dial tcp 127.0.0.1:18666: connect: connection refused"), ErrorTypeNetwork},
		{errors.New("unexpected EOF"), ErrorTypeNetwork},
		{errors.New("status 503: service unavailable"), ErrorTypeRetryable},
		{errors.New("status 429"), ErrorTypeRetryable},
		{errors.New("status 404: not found"), ErrorTypeFatal},
		{errors.New("something odd"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.want))
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(errors.New("i/o timeout")) {
		t.Error("timeouts should be retryable")
	}
	if IsRetryable(errors.New("status 400: bad request")) {
		t.Error("bad request should not be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("cancellation should not be retryable")
	}
}
