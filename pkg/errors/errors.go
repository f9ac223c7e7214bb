// Package errors wraps github.com/pkg/errors with the helpers used across
// syncbox: context wrapping, root cause extraction, and errors whose
// message is safe to print to users as-is.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// New returns an error with the supplied message.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf formats according to a format specifier and returns the string as
// an error.
func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// WithContext annotates `err` with `context`. It returns nil if `err` is nil
// so that it can wrap the result of a call directly.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, context)
}

// RootCause returns the innermost error that was wrapped with WithContext.
func RootCause(err error) error {
	return errors.Cause(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// FriendlyError is an error whose message is written for the user rather
// than for a developer reading the logs.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError from a format string.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// GetFriendlyMessage returns the user facing message for `err` if the
// root cause is a FriendlyError.
func GetFriendlyMessage(err error) (string, bool) {
	if friendly, ok := RootCause(err).(FriendlyError); ok {
		return friendly.FriendlyMessage(), true
	}
	return "", false
}
