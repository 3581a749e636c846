package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_StatusOnly(t *testing.T) {
	for s := 0; s <= 700; s++ {
		var want Problem
		switch {
		case s >= 400 && s <= 499:
			want = ProblemClient
		case s >= 500 && s <= 599:
			want = ProblemServer
		case s >= 200 && s <= 299:
			want = ProblemNone
		default:
			want = ProblemUnknown
		}
		assert.Equal(t, want, Classify(s, nil), "status %d", s)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify_Failures(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name   string
		status int
		err    error
		want   Problem
	}{
		{"timeout abort", 0, &AbortError{Reason: ErrTimeout, Err: context.Canceled}, ProblemTimeout},
		{"deadline abort", 0, &AbortError{Reason: context.DeadlineExceeded, Err: context.Canceled}, ProblemTimeout},
		{"caller abort", 0, &AbortError{Reason: context.Canceled, Err: context.Canceled}, ProblemCancel},
		{"custom abort reason", 0, &AbortError{Reason: errors.New("user left"), Err: context.Canceled}, ProblemCancel},
		{"abort beats status", 200, &AbortError{Reason: context.Canceled}, ProblemCancel},
		{"bare deadline", 0, context.DeadlineExceeded, ProblemTimeout},
		{"bare cancel", 0, fmt.Errorf("wrapped: %w", context.Canceled), ProblemCancel},
		{"net timeout", 0, timeoutErr{}, ProblemTimeout},
		{"dns", 0, &net.DNSError{Err: "no such host", Name: "nope.invalid"}, ProblemNetwork},
		{"unreachable", 0, os.NewSyscallError("connect", syscall.ENETUNREACH), ProblemNetwork},
		{"fetch message", 0, errors.New("failed to fetch"), ProblemNetwork},
		{"refused", 0, refused, ProblemConnection},
		{"reset", 0, syscall.ECONNRESET, ProblemConnection},
		{"connection message", 0, errors.New("Connection closed by peer"), ProblemConnection},
		{"unknown failure", 0, errors.New("boom"), ProblemUnknown},
		{"unknown failure with status", 503, errors.New("boom"), ProblemServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.err))
		})
	}
}

func TestClassify_IgnoresURLText(t *testing.T) {
	err := &neturl.Error{Op: "Get", URL: "http://network-fetch.example.com", Err: errors.New("boom")}
	assert.Equal(t, ProblemUnknown, Classify(0, err))
}

func TestProblem_String(t *testing.T) {
	assert.Equal(t, "NONE", ProblemNone.String())
	assert.Equal(t, "CLIENT_ERROR", ProblemClient.String())
	assert.Equal(t, "CANCEL_ERROR", ProblemCancel.String())
}

func TestAbortError_Unwrap(t *testing.T) {
	err := &AbortError{Reason: ErrTimeout, Err: context.Canceled}
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestClassifyLocal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Problem
	}{
		{"fetch in text", errors.New("could not fetch signing key"), ProblemUnknown},
		{"connection in text", errors.New("token request failed (CONNECTION_ERROR): dial tcp: connection refused"), ProblemUnknown},
		{"timeout in text", errors.New("timeout budget spent"), ProblemUnknown},
		{"empty method", ErrEmptyMethod, ProblemUnknown},
		{"abort on timer", &AbortError{Reason: ErrTimeout}, ProblemTimeout},
		{"abort on deadline", &AbortError{Reason: context.DeadlineExceeded}, ProblemTimeout},
		{"abort by caller", &AbortError{Reason: context.Canceled}, ProblemCancel},
		{"wrapped canceled", fmt.Errorf("wait: %w", context.Canceled), ProblemCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyLocal(tt.err))
		})
	}
}
