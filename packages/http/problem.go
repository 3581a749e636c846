package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"
	"syscall"
)

// Problem classifies why a call did not succeed. The zero value ProblemNone
// marks a successful call and is never reported as an error.
type Problem string

const (
	ProblemNone       Problem = ""
	ProblemClient     Problem = "CLIENT_ERROR"
	ProblemServer     Problem = "SERVER_ERROR"
	ProblemTimeout    Problem = "TIMEOUT_ERROR"
	ProblemConnection Problem = "CONNECTION_ERROR"
	ProblemNetwork    Problem = "NETWORK_ERROR"
	ProblemCancel     Problem = "CANCEL_ERROR"
	ProblemUnknown    Problem = "UNKNOWN_ERROR"
)

func (p Problem) String() string {
	if p == ProblemNone {
		return "NONE"
	}
	return string(p)
}

var (
	// ErrTimeout is the cancellation cause used when a call's timeout expires
	ErrTimeout = errors.New("request deadline exceeded")

	// ErrEmptyMethod is returned for a call without an HTTP method
	ErrEmptyMethod = errors.New("empty request method")
)

// AbortError wraps a transport failure that happened after the call was
// cancelled. Reason carries the cancellation cause.
type AbortError struct {
	Reason error
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("request aborted: %v", e.Reason)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Classify maps a terminal status code and/or a failure to exactly one Problem.
// An abort always wins over a status code.
func Classify(status int, err error) Problem {
	if err != nil {
		if aborted, timedOut := abortState(err); aborted {
			if timedOut {
				return ProblemTimeout
			}
			return ProblemCancel
		}
		if isNetworkFailure(err) {
			return ProblemNetwork
		}
		if isConnectionFailure(err) {
			return ProblemConnection
		}
	}

	switch {
	case status >= 400 && status <= 499:
		return ProblemClient
	case status >= 500 && status <= 599:
		return ProblemServer
	case status >= 200 && status <= 299:
		return ProblemNone
	}
	return ProblemUnknown
}

// classifyLocal classifies a failure raised before the transport was reached,
// by hitfetch itself or by a transform. Only an abort keeps its own problem;
// the error text is never consulted.
func classifyLocal(err error) Problem {
	var abort *AbortError
	switch {
	case errors.As(err, &abort):
		if isDeadline(abort.Reason) {
			return ProblemTimeout
		}
		return ProblemCancel
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ProblemTimeout
	case errors.Is(err, context.Canceled):
		return ProblemCancel
	}
	return ProblemUnknown
}

func abortState(err error) (aborted, timedOut bool) {
	var abort *AbortError
	if errors.As(err, &abort) {
		return true, isDeadline(abort.Reason)
	}
	if isDeadline(err) {
		return true, true
	}
	if errors.Is(err, context.Canceled) {
		return true, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, true
	}
	return false, false
}

func isDeadline(reason error) bool {
	if reason == nil {
		return false
	}
	if errors.Is(reason, ErrTimeout) || errors.Is(reason, context.DeadlineExceeded) {
		return true
	}
	msg := failureMessage(reason)
	return strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout")
}

func isNetworkFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	msg := failureMessage(err)
	return strings.Contains(msg, "network") || strings.Contains(msg, "fetch")
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := failureMessage(err)
	return strings.Contains(msg, "connection") || strings.Contains(msg, "refused")
}

// failureMessage strips the *url.Error wrapper so the request URL itself
// never influences classification.
func failureMessage(err error) string {
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	return strings.ToLower(err.Error())
}
