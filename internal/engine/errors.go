package engine

import (
	"errors"
	"fmt"
)

// ErrScopeClosed is returned by tracking calls made after the checking scope
// finished or was aborted by a fatal error.
var ErrScopeClosed = errors.New("checking scope closed")

// FatalError aborts a checking scope.
//
// Fatal errors mean the instrumented transformation called the checker in a
// way it cannot interpret:
//   - Not a node: the destination of a construct event is not a node
//   - Missing origin: a clone without the node it was cloned from
//   - Missing position: a move without a node or block to move to
//   - Cross function: a dominance query between two functions, or with a
//     detached node
//
// Policy violations are never fatal; they are reported as fail verdicts.
type FatalError struct {
	// Code identifies the error category.
	Code FatalErrorCode

	// Message is a human-readable description.
	Message string

	// Line is the source line of the offending event.
	Line int

	// Details contains additional context.
	Details map[string]string
}

// FatalErrorCode categorizes fatal errors.
type FatalErrorCode string

const (
	ErrCodeNotANode        FatalErrorCode = "NOT_A_NODE"
	ErrCodeMissingOrigin   FatalErrorCode = "MISSING_ORIGIN"
	ErrCodeMissingPosition FatalErrorCode = "MISSING_POSITION"
	ErrCodeCrossFunction   FatalErrorCode = "CROSS_FUNCTION"

	// ErrCodeInvalidKind indicates an event carried a kind it cannot carry,
	// such as constructing an Untracked node or declaring Any.
	ErrCodeInvalidKind FatalErrorCode = "INVALID_KIND"
)

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line=%d)", e.Code, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsFatal returns true if err is, or wraps, a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// FatalCode returns the code of a wrapped FatalError, or "" if there is none.
func FatalCode(err error) FatalErrorCode {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func newFatal(code FatalErrorCode, site Site, format string, args ...any) *FatalError {
	e := &FatalError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    site.Line,
	}
	if site.Dst != "" || site.Src != "" {
		e.Details = map[string]string{
			"dst": site.Dst,
			"src": site.Src,
		}
	}
	return e
}
