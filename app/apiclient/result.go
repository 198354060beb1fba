package apiclient

// Result is what every backend operation returns: either a value or a typed *Error.
type Result[T any] struct {
	value T
	err   *Error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

func Fail[T any](err *Error) Result[T] {
	if err == nil {
		err = &Error{Kind: KindServer}
	}
	return Result[T]{err: err}
}

func (r Result[T]) OK() bool {
	return r.err == nil
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() *Error {
	return r.err
}

// Unpack converts the result to the usual (value, error) pair.
func (r Result[T]) Unpack() (T, error) {
	if r.err != nil {
		return r.value, r.err
	}
	return r.value, nil
}
