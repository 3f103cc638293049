package cli

type IRetryable interface {
	Retryable() bool
}

type Error struct {
	What string
}

func (e *Error) Retryable() bool { return false }

type RetryableError struct {
	What string
}

func (e *RetryableError) Retryable() bool { return true }

func (e *Error) Error() string {
	return "error: " + e.What
}

func (e *RetryableError) Error() string {
	return "error: " + e.What
}

func NewError(err error) *Error {
	return &Error{
		What: err.Error(),
	}
}

func NewErrorWithString(err string) *Error {
	return &Error{err}
}
