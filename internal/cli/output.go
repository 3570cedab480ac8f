package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/remote"
	"github.com/roach88/web2/internal/store"
	"github.com/roach88/web2/internal/view"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (backend error, save rejected, record missing)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, database not openable)
)

// Error codes reported in JSON output.
const (
	CodeConfig    = "E_CONFIG"
	CodeTransport = "E_TRANSPORT"
	CodeStatus    = "E_STATUS"
	CodeNotFound  = "E_NOT_FOUND"
	CodeStore     = "E_STORE"
	CodeView      = "E_VIEW"
	CodeModel     = "E_MODEL"
	CodeInternal  = "E_INTERNAL"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err for JSON output.
func ErrorCode(err error) string {
	var ve *view.Error
	switch {
	case GetExitCode(err) == ExitCommandError:
		return CodeConfig
	case remote.IsNotFound(err), errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case remote.IsTransport(err):
		return CodeTransport
	case remote.IsStatus(err, 0):
		return CodeStatus
	case errors.As(err, &ve):
		return CodeView
	case errors.Is(err, model.ErrNoIdentifier), errors.Is(err, model.ErrNoSync):
		return CodeModel
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInvalidID):
		return CodeStore
	default:
		return CodeInternal
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs data. Text output prints data with fmt, so result types
// control their text form with a String method.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Failure reports err and returns it wrapped with exitCode.
func (f *OutputFormatter) Failure(exitCode int, message string, err error) error {
	resp := CLIResponse{
		Status: "error",
		Error:  &CLIError{Code: ErrorCode(err), Message: message},
	}
	var re *remote.Error
	if errors.As(err, &re) {
		resp.RequestID = re.RequestID
		resp.Error.Details = map[string]any{"method": re.Method, "url": re.URL, "status": re.Status}
	}

	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(resp)
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s: %v\n", resp.Error.Code, message, err)
		if f.Verbose && resp.RequestID != "" {
			fmt.Fprintf(f.errWriter(), "request id: %s\n", resp.RequestID)
		}
	}
	return WrapExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled. It always
// goes to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
