package markup

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedValue = errors.New("markup: unsupported value type")
	ErrInvalidName      = errors.New("markup: invalid element name")
	ErrInvalidText      = errors.New("markup: invalid text content")
	ErrMalformedRaw     = errors.New("markup: malformed raw markup")
)

// DataError reports a value that cannot be serialized. Path locates the
// offending node, e.g. "Envelope/Body/AddRecipient/COLUMN[1]".
type DataError struct {
	Path   string
	Err    error
	Detail string
}

func (e *DataError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at %s", e.Err, e.Path)
	}
	return fmt.Sprintf("%v at %s: %s", e.Err, e.Path, e.Detail)
}

func (e *DataError) Unwrap() error { return e.Err }

func dataError(path string, err error, format string, args ...any) *DataError {
	return &DataError{Path: path, Err: err, Detail: fmt.Sprintf(format, args...)}
}
