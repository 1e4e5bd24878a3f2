package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/stack"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (save rejected, scenarios failed, invalid model)
	ExitCommandError = 2 // Command error (bad flags, missing config, store won't open)
)

// Error codes reported in JSON error responses.
const (
	ErrCodeConfig       = "E_CONFIG"
	ErrCodeModelInvalid = "E_MODEL_INVALID"
	ErrCodeSave         = "E_SAVE"
	ErrCodeFetch        = "E_FETCH"
	ErrCodeTestFailed   = "E_TEST_FAILED"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // optional
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

// GetExitCode extracts the exit code from an error: ExitSuccess for nil,
// ExitFailure for errors that are not an ExitError.
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

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the envelope of every JSON result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether the formatter writes JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data. Text output prints data with fmt.Println, so
// callers usually pass a preformatted string.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes an error response. details are shown in text mode only
// with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on. It goes to
// ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// ObjectView is the JSON form of a fetched or inserted object.
type ObjectView struct {
	ID     ir.ObjectID     `json:"id"`
	Entity string          `json:"entity"`
	Values json.RawMessage `json:"values"`
}

func newObjectView(o *stack.Object) (ObjectView, error) {
	data, err := ir.MarshalObject(o.Values())
	if err != nil {
		return ObjectView{}, fmt.Errorf("marshal %s %s: %w", o.Entity(), o.ID(), err)
	}
	return ObjectView{ID: o.ID(), Entity: o.Entity(), Values: data}, nil
}

// formatObject renders an object as one text line: "<entity> <id> {values}".
func formatObject(o *stack.Object) string {
	return fmt.Sprintf("%s %s %s", o.Entity(), o.ID(), o.Values())
}
