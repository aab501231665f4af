package core

import (
	"errors"
	"fmt"
)

// ErrLoginFailed means the portal answered the login request but the body
// carried neither success marker: the credentials were rejected or the
// portal copy changed. Distinct from a transport fault.
var ErrLoginFailed = errors.New("failed to login to your account")

// ErrNotAuthenticated is returned when a fetch primitive is called before
// a successful Login. This is a caller bug, not a runtime condition to
// retry.
var ErrNotAuthenticated = errors.New("session is not authenticated")

// NetworkError wraps any transport-level fault (timeout, connection
// reset, malformed response). Raw resty errors never escape the session
// boundary.
type NetworkError struct {
	Op  string
	Url string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Url, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RejectedError carries a portal-reported error envelope, e.g. an invalid
// course key on course entry.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("portal rejected request: %s", e.Message)
}

// RenderError reports a headless-browser launch or script-execution
// fault. It is always scoped to a single attachment resolution.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render backend %s: %s", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
