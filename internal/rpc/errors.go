package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAccountNotFound reports a null getAccountInfo result: the address has
// no account at the queried commitment.
var ErrAccountNotFound = errors.New("account not found")

// EndpointError is one endpoint's failure inside a race.
type EndpointError struct {
	Endpoint string
	Err      error
}

func (e EndpointError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e EndpointError) Unwrap() error { return e.Err }

// AggregateError means every endpoint in the race failed. It keeps each
// individual failure for diagnostics; the caller decides whether to retry
// on its own schedule.
type AggregateError struct {
	Method   string
	Failures []EndpointError
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("rpc %s failed on all %d endpoints: %s",
		e.Method, len(e.Failures), strings.Join(parts, "; "))
}
