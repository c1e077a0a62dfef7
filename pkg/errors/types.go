package errors

import (
	"fmt"
)

// ErrNotDirectory is returned when a path that must be a directory isn't.
var ErrNotDirectory = New("not a directory")

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}
