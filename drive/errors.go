package drive

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by a backend that has no way to perform an operation.
	ErrUnsupported = errors.New("operation not supported by backend")

	// ErrNoCredentials means neither a service account nor an OAuth client was configured.
	ErrNoCredentials = errors.New("no drive credentials configured")
)

// OperationError wraps a failed Drive API call.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("drive %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
