package errors

import (
	"fmt"
)

// ErrServerDown is reported to the client's observer when the server
// announces that it is shutting down.
var ErrServerDown = New("server is shutting down")

// ErrShortContent is returned when a connection closes before delivering
// the number of content bytes it declared.
var ErrShortContent = New("connection closed before the declared content was read")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// InvalidPath is returned for relative paths received from a peer that are
// absolute or would escape the synced directory.
type InvalidPath struct {
	Path string
}

func (err InvalidPath) Error() string {
	return fmt.Sprintf("invalid relative path %q", err.Path)
}

// UnknownCommand is returned when a connection starts with a command code
// this version doesn't understand.
type UnknownCommand struct {
	Code int32
}

func (err UnknownCommand) Error() string {
	return fmt.Sprintf("unknown command code %d", err.Code)
}
