package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorizes resource request failures.
type ErrorCode string

const (
	// ErrCodeTransport indicates the request never produced a response
	// (connection refused, DNS failure, context cancelled).
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeStatus indicates the backend answered with a non-2xx status.
	ErrCodeStatus ErrorCode = "STATUS"

	// ErrCodeDecode indicates the response body was not the expected JSON.
	ErrCodeDecode ErrorCode = "DECODE"

	// ErrCodeEncode indicates the request body could not be encoded.
	ErrCodeEncode ErrorCode = "ENCODE"
)

// Error describes a failed resource request.
type Error struct {
	Code      ErrorCode
	Method    string
	URL       string
	Status    int    // HTTP status, 0 unless Code is ErrCodeStatus
	Body      string // leading part of the error response body
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Code == ErrCodeStatus:
		return fmt.Sprintf("%s: %s %s: %d %s", e.Code, e.Method, e.URL, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: %s %s", e.Code, e.Method, e.URL)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeTransport
	}
	return false
}

// IsStatus reports whether err is a non-2xx response with the given status.
// A status of 0 matches any non-2xx response.
func IsStatus(err error, status int) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeStatus && (status == 0 || re.Status == status)
	}
	return false
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}
