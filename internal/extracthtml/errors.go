package extracthtml

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an expected element is missing from the document,
	// almost always because the remote markup changed.
	ErrNotFound = errors.New("element not found")

	// ErrConversion means a located, non-sentinel text could not be coerced.
	ErrConversion = errors.New("conversion failed")
)

// NotFoundError names what was looked for and the selector used.
type NotFoundError struct {
	What     string
	Selector string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.What, e.Selector, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConversionError describes the offending cell. Row is the 0-based index of
// the row element within the container (-1 for record extraction).
type ConversionError struct {
	Field string
	Row   int
	Text  string
	Type  string
	Err   error
}

func (e *ConversionError) Error() string {
	where := fmt.Sprintf("row %d", e.Row)
	if e.Row < 0 {
		where = "record"
	}
	return fmt.Sprintf("%s field %q: %v: cannot convert %q to %s: %v", where, e.Field, ErrConversion, e.Text, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() []error { return []error{ErrConversion, e.Err} }
