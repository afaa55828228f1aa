package drive

import "errors"

type Kind int

const (
	KindSuccess Kind = iota + 1
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "empty"
	}
}

var errEmptyResult = errors.New("empty result")

// Result is the outcome of one backend call: a payload on success or a
// reason on failure, never both.
type Result[T any] struct {
	kind    Kind
	payload T
	reason  error
}

func Success[T any](payload T) Result[T] {
	return Result[T]{kind: KindSuccess, payload: payload}
}

// Failure builds a failed result. A nil reason is replaced so a failure
// always carries one.
func Failure[T any](reason error) Result[T] {
	if reason == nil {
		reason = errEmptyResult
	}
	return Result[T]{kind: KindFailure, reason: reason}
}

func (r Result[T]) Kind() Kind {
	return r.kind
}

func (r Result[T]) OK() bool {
	return r.kind == KindSuccess
}

func (r Result[T]) Payload() T {
	return r.payload
}

func (r Result[T]) Reason() error {
	switch {
	case r.kind == KindSuccess:
		return nil
	case r.reason == nil:
		return errEmptyResult
	}
	return r.reason
}

// Unwrap returns the result as a conventional value and error pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.payload, r.Reason()
}
