package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNotFound means the aggregate root no longer exists.
	ErrNotFound = errors.New("aggregate root not found")
	// ErrTransient means the unit of work lost every retry against
	// concurrent writers or ran out of time. The caller may retry it.
	ErrTransient = errors.New("aggregate transient failure")
	// ErrInvariant means the write would break a stored invariant and was
	// rolled back.
	ErrInvariant = errors.New("aggregate invariant violation")
	// ErrInvalid rejects malformed input before any write happens.
	ErrInvalid = errors.New("aggregate invalid input")
)

type transientError struct {
	op       string
	attempts int
	err      error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempt(s): %v", e.op, e.attempts, e.err)
}

func (e *transientError) Unwrap() error { return e.err }

func (e *transientError) Is(target error) bool { return target == ErrTransient }

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	}
	return "error"
}

// joined returns the accumulated errors, or nil, formatted on one line so
// that a log entry carrying them stays a single line.
func joined(merr *multierror.Error) error {
	if merr == nil {
		return nil
	}
	merr.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return merr.ErrorOrNil()
}
