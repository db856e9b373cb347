package catalog

import "fmt"

// NotFoundError reports a path that does not exist
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path does not exist: %s", e.Path)
}

// NotReadableError reports a path the process cannot read
type NotReadableError struct {
	Path string
	Err  error
}

func (e *NotReadableError) Error() string {
	return fmt.Sprintf("path is not readable: %s", e.Path)
}

func (e *NotReadableError) Unwrap() error { return e.Err }

// EmptyDirectoryError reports a directory without any entry
type EmptyDirectoryError struct {
	Path string
}

func (e *EmptyDirectoryError) Error() string {
	return fmt.Sprintf("directory is empty: %s", e.Path)
}

// UnsupportedFormatError names the first file whose extension is not an image
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Path)
}

// NotADirectoryError is returned when a directory was expected
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("not a directory: %s", e.Path)
}

// IsADirectoryError is returned when a regular file was expected
type IsADirectoryError struct {
	Path string
}

func (e *IsADirectoryError) Error() string {
	return fmt.Sprintf("is a directory: %s", e.Path)
}

// NestedDirectoryError is returned when a flat directory contains subdirectories
type NestedDirectoryError struct {
	Path string
}

func (e *NestedDirectoryError) Error() string {
	return fmt.Sprintf("directory must not contain subdirectories: %s", e.Path)
}
