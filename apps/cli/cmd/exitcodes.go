package cmd

import (
	"strconv"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// Exit codes for the hitfetch CLI
const (
	// ExitSuccess indicates every call succeeded and every assertion held
	ExitSuccess = 0

	// ExitRequestFailure indicates a call ended with a client, server or unknown problem
	ExitRequestFailure = 1

	// ExitAssertionFailure indicates a call succeeded but an --expect check failed
	ExitAssertionFailure = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a timeout, network or connection problem
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries an exit code out of a command. Err may be nil when the
// failure has already been reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// exitCodeFor maps an envelope to the exit code the CLI reports for it.
func exitCodeFor(env *http.Envelope) int {
	switch env.Problem {
	case http.ProblemNone:
		return ExitSuccess
	case http.ProblemTimeout, http.ProblemNetwork, http.ProblemConnection:
		return ExitNetworkError
	default:
		return ExitRequestFailure
	}
}
