package storage

import (
	"errors"
	"fmt"
)

// ErrFormat is matched by every FormatError.
var ErrFormat = errors.New("invalid selection state")

// FormatError reports a persisted document that exists but is malformed. A
// malformed cache is never replaced by an empty default.
type FormatError struct {
	Section string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("%v: %v", ErrFormat, e.Err)
	}
	return fmt.Sprintf("%v: section %q: %v", ErrFormat, e.Section, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
