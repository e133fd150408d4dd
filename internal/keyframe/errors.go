package keyframe

import (
	"errors"
	"fmt"
)

// ErrMissingFile is returned when an input path does not exist.
var ErrMissingFile = errors.New("input file not found")

// ParseError reports a malformed trajectory record. A single ParseError
// aborts the whole trajectory load.
type ParseError struct {
	File   string
	Line   int // 1-based
	Text   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s:%d: %s: %q: %v", e.File, e.Line, e.Reason, e.Text, e.Err)
	}
	return fmt.Sprintf("%s:%d: %s: %q", e.File, e.Line, e.Reason, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SkippedRecord is a detection line that failed validation. Skipped records
// are warnings; they never abort a detection load.
type SkippedRecord struct {
	Line   int // 1-based
	Text   string
	Reason string
}

func (s SkippedRecord) String() string {
	return fmt.Sprintf("line %d: %s: %q", s.Line, s.Reason, s.Text)
}
