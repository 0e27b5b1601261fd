package decoder

import (
	"errors"
	"fmt"
	"io"
)

// ErrTruncated reports a payload shorter than the header promises
var ErrTruncated = errors.New("truncated payload")

// DecodeError reports a malformed or truncated recording. Field names the
// structural header field or payload section that failed validation.
type DecodeError struct {
	Format string
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s: %v", e.Format, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func fieldError(format, field string, err error) *DecodeError {
	return &DecodeError{Format: format, Field: field, Err: err}
}

// readError maps short reads to ErrTruncated
func readError(format, field string, err error) *DecodeError {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrTruncated
	}
	return fieldError(format, field, err)
}
