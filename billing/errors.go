package billing

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a key has no row in a worksheet. When raised after the
// inputs were written, the write is not rolled back.
type NotFoundError struct {
	Key       string
	Worksheet string
	Written   bool // the inputs were written before the lookup failed
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key %q not found in worksheet %q", e.Key, e.Worksheet)
}

// AmbiguousKeyError reports that a key matches more than one row of a worksheet.
// Nothing is written when the input worksheet is ambiguous.
type AmbiguousKeyError struct {
	Key       string
	Worksheet string
	Rows      []int
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("key %q matches %d rows %v in worksheet %q", e.Key, len(e.Rows), e.Rows, e.Worksheet)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguous reports whether err is, or wraps, an AmbiguousKeyError.
func IsAmbiguous(err error) bool {
	var ak *AmbiguousKeyError
	return errors.As(err, &ak)
}

// InputError reports a SyncRequest that cannot be written.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SchemaError reports a worksheet whose layout does not match the configuration,
// such as a header row that cannot be found or a missing key column.
type SchemaError struct {
	Worksheet string
	Err       error
	Written   bool // the inputs were written before the mismatch was found
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("worksheet %q: %v", e.Worksheet, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IsSchema reports whether err is, or wraps, a SchemaError.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// markWritten flags a lookup or layout error raised after the inputs were written.
func markWritten(err error) {
	var (
		nf *NotFoundError
		se *SchemaError
	)
	if errors.As(err, &nf) {
		nf.Written = true
	}
	if errors.As(err, &se) {
		se.Written = true
	}
}
