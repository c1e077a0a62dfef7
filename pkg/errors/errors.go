// Package errors wraps errors with the context of the operation that failed,
// and distinguishes errors meant for the user from internal ones.
package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(format string, args ...interface{}) error {
	if len(args) == 0 {
		return goErrors.New(format)
	}
	return fmt.Errorf(format, args...)
}

// contextError annotates an error with what we were doing when it occurred.
type contextError struct {
	context string
	err     error
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// WithContext returns an error that prefixes `err` with `context`. The
// context should be a short description of the operation, such as "open" or
// "hash source".
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, err: err}
}

// RootCause returns the innermost error wrapped by WithContext.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// FriendlyError is an error whose message is meant to be read by the user
// as-is. Any context added via WithContext is dropped when it's printed.
type FriendlyError struct {
	msg string
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message to show the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// NewFriendlyError creates a FriendlyError.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, args...)}
}

type friendlyMessager interface {
	FriendlyMessage() string
}

// GetPrintableMessage returns the message that should be shown to the user
// for `err`. Friendly errors anywhere in the chain take precedence over the
// full context chain.
func GetPrintableMessage(err error) string {
	var friendly friendlyMessager
	if goErrors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
