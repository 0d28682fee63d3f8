package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind is the closed set of failure categories the gateway reports.
// Domain stores and the session manager branch on kinds only; raw status
// codes never leave this package.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindServer
	KindTimeout
	KindNetworkUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	case KindNetworkUnreachable:
		return "network_unreachable"
	default:
		return "unknown"
	}
}

// Message returns the user-presentable description for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindValidation:
		return "Some of the submitted information is invalid, please check and try again"
	case KindUnauthorized:
		return "Your session has expired, please sign in again"
	case KindForbidden:
		return "You don't have permission to perform this action"
	case KindNotFound:
		return "The requested resource does not exist"
	case KindRateLimited:
		return "Too many requests, please try again shortly"
	case KindServer:
		return "Server error, please try again later"
	case KindTimeout:
		return "The request timed out, please try again"
	case KindNetworkUnreachable:
		return "Network connection failed, please check your connection"
	default:
		return "Something went wrong, please try again"
	}
}

// Retryable reports whether a failure of this kind is transient enough to
// retry. Unauthorized and Validation failures are not: repeating them cannot
// succeed without new input.
func (k ErrorKind) Retryable() bool {
	return k != KindUnauthorized && k != KindValidation
}

// Error is a classified gateway failure.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 for transport failures
	Message string // server-provided message when available
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

// KindOf extracts the ErrorKind from an error returned by this package.
// Errors from elsewhere report KindUnknown.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindUnknown
	}
}

// classifyTransport maps a transport-level failure (no HTTP response
// received) onto the taxonomy: timeouts are Timeout, everything else is
// NetworkUnreachable.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetworkUnreachable
}
