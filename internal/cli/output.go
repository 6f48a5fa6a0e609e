package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes of the dlsan process.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario failed or a file could not be instrumented
	ExitCommandError = 2 // bad arguments, configuration, paths or database
)

// errorCodes name exit codes in JSON error responses.
var errorCodes = map[int]string{
	ExitFailure:      "CHECK_FAILED",
	ExitCommandError: "COMMAND_ERROR",
}

// ExitError is a command error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error // cause, may be nil
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to an exit code: 0 for nil, the ExitError's code if
// err wraps one, and ExitFailure otherwise.
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

// ErrorCode is the code reported for err in a JSON error response.
func ErrorCode(err error) string {
	if code, ok := errorCodes[GetExitCode(err)]; ok {
		return code
	}
	return "ERROR"
}

// CLIResponse is the document written by every command under --format json.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command output as text or as a CLIResponse.
//
// Writer receives results. ErrWriter receives diagnostics and defaults to
// Writer; under --format json the two should differ so that Writer carries
// a single JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// JSON writes an indented CLIResponse with the given status. Commands whose
// payload matters even on failure (check, instrument) use it directly.
func (f *OutputFormatter) JSON(status string, data any) error {
	return f.encode(CLIResponse{Status: status, Data: data})
}

// Success writes data as an "ok" response, or with fmt in text mode.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.JSON("ok", data)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an "error" response. In text mode details are only shown
// under --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// Text writes one line of human-readable progress; it is dropped under
// --format json.
func (f *OutputFormatter) Text(format string, args ...any) {
	if f.isJSON() {
		return
	}
	fmt.Fprintf(f.Writer, format+"\n", args...)
}

// VerboseLog writes one diagnostic line under --verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the diagnostics writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
