package responder

import "errors"

// Failure kinds. Use errors.Is against these or KindOf.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrStorage      = errors.New("storage failure")
	ErrGeneration   = errors.New("generation failure")
)

// Error is a failed Handle call. It unwraps to both Kind and the cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindOf returns the failure kind carried by err, or nil.
func KindOf(err error) error {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return nil
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
