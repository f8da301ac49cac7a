package api

import "fmt"

// Error is the normalized form every failed request collapses into: the HTTP
// status (0 when the request never got a response), a human-readable detail
// (server-supplied when available, an operation-specific fallback otherwise),
// and the original cause for logging.
type Error struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Detail
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Detail, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}
