package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrAuthentication: the credential was rejected. Fatal to the interaction.
	ErrAuthentication = errors.New("authentication error")
	// ErrInvalidInput: unsupported or corrupt image, or a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransient: network failure, timeout or rate limit. A later retry may succeed.
	ErrTransient = errors.New("transient service error")
	// ErrUnknownResponse: the service answered without a usable choice.
	ErrUnknownResponse = errors.New("unknown response")
)

// Error carries the kind of a failed call together with the provider's own error.
type Error struct {
	Kind     error
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	prefix := e.Kind.Error()
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.Status != 0 {
		prefix = fmt.Sprintf("%s (status %d)", prefix, e.Status)
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindForStatus maps an HTTP status code of a failed call to an error kind.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuthentication
	case status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests,
		status >= 500:
		return ErrTransient
	case status >= 400:
		return ErrInvalidInput
	}
	return ErrUnknownResponse
}

func FromStatus(provider string, status int, err error) error {
	return &Error{Kind: KindForStatus(status), Provider: provider, Status: status, Err: err}
}

// FromTransport classifies an error that carries no HTTP status.
// Network errors, timeouts and cancellation are transient; anything else
// means the response could not be understood.
func FromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &ne) {
		return &Error{Kind: ErrTransient, Provider: provider, Err: err}
	}
	return &Error{Kind: ErrUnknownResponse, Provider: provider, Err: err}
}

func EmptyResponse(provider string) error {
	return &Error{Kind: ErrUnknownResponse, Provider: provider, Err: errors.New("empty response")}
}

func InvalidInput(provider string, err error) error {
	return &Error{Kind: ErrInvalidInput, Provider: provider, Err: err}
}

// KindOf returns the error kind of err, or nil when err is not classified.
func KindOf(err error) error {
	for _, k := range []error{ErrAuthentication, ErrInvalidInput, ErrTransient, ErrUnknownResponse} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is the short name of the kind used in API responses and logs.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrAuthentication:
		return "authentication"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrTransient:
		return "transient"
	case ErrUnknownResponse:
		return "unknown_response"
	}
	return "internal"
}
