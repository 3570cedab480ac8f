package view

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes view failures.
type ErrorCode string

const (
	// ErrCodeMount indicates a missing document, a missing or detached
	// mount point, or a nil source or renderable.
	ErrCodeMount ErrorCode = "MOUNT"

	// ErrCodeEvent indicates a malformed "eventType:selector" key.
	ErrCodeEvent ErrorCode = "EVENT"

	// ErrCodeSelector indicates a selector that failed to compile.
	ErrCodeSelector ErrorCode = "SELECTOR"

	// ErrCodeRegion indicates Mount named a region that is not resolved.
	ErrCodeRegion ErrorCode = "REGION"

	// ErrCodeTemplate indicates the template could not be produced or parsed.
	ErrCodeTemplate ErrorCode = "TEMPLATE"

	// ErrCodeClosed indicates an operation on a closed view.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error describes a view construction or render failure.
type Error struct {
	Code ErrorCode

	// View is the view name used for logs and metrics.
	View string

	// Key is the offending event key or region name, when there is one.
	Key string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: view %s", e.Code, e.View)
	if e.Key != "" {
		msg += fmt.Sprintf(" (%s)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

// IsMountError reports whether err is a mount point failure.
func IsMountError(err error) bool { return hasCode(err, ErrCodeMount) }

// IsDeclarationError reports whether err comes from an invalid event key
// or selector.
func IsDeclarationError(err error) bool {
	return hasCode(err, ErrCodeEvent) || hasCode(err, ErrCodeSelector)
}

// IsClosed reports whether err was caused by using a closed view.
func IsClosed(err error) bool { return hasCode(err, ErrCodeClosed) }
