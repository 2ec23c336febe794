package payments

import (
	"errors"
	"fmt"
)

var (
	// ErrParse means the transport payload could not be structurally
	// decoded for the claimed rail.
	ErrParse = errors.New("malformed provider payload")
	// ErrForged means the payload failed authenticity verification. No
	// idempotency record is written for forged events, so a later
	// legitimately-signed resend is not blocked.
	ErrForged = errors.New("payload failed authenticity verification")
	// ErrUnknownProvider means no rail is registered for the kind.
	ErrUnknownProvider = errors.New("unknown provider kind")
)

// TransientError wraps infrastructure failures (database unreachable, chain
// node timeout). Handlers respond with a retryable status so the provider
// redelivers instead of the engine guessing an outcome.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
