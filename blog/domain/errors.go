package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnexpectedEOF is returned when a document ends before its header is complete.
	ErrUnexpectedEOF = errors.New("unexpected end of input")

	// ErrNotFound is returned by catalog lookups for unknown slugs.
	ErrNotFound = errors.New("not found")
)

// FormatError reports a header line that does not have the expected shape.
type FormatError struct {
	Expected string
	Found    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("expected line to be '%s', found '%s'", e.Expected, e.Found)
}

// DateError reports a publish date that does not match the fixed date format.
type DateError struct {
	Layout string
	Value  string
	Err    error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("failed to parse date, expected %s, found %s", e.Layout, e.Value)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

// DirectoryError reports a failure on the source or target directory of a publish run.
type DirectoryError struct {
	Op   string
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("failed %s directory %s: %v", e.Op, e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// IOError reports a read or write failure on a single document or artifact.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// RemoteError reports a failed call to the remote source repository.
// Status is the HTTP status when the remote answered, zero otherwise.
type RemoteError struct {
	Op     string
	Repo   string
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s failed with status %d: %v", e.Repo, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Repo, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is makes a 404 from the remote match ErrNotFound
func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
