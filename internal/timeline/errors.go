package timeline

import "fmt"

// Kind classifies engine failures. Only KindInvalidInput ever reaches the
// caller as an error; the other kinds name per-event anomalies that are
// absorbed and counted in Diagnostics.
type Kind string

const (
	KindInvalidInput   Kind = "E_INVALID_INPUT"
	KindSkippedEvent   Kind = "E_SKIPPED_EVENT"
	KindRejectedEntity Kind = "E_REJECTED_ENTITY"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidInput builds a structural failure.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// WrapInvalidInput marks err as a structural failure.
func WrapInvalidInput(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...), Err: err}
}
