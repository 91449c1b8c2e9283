package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind int

const (
	// KindSourceIssue: the input image itself is unusable.
	KindSourceIssue ErrorKind = iota + 1
	// KindToolFailure: a stage tool returned an error, panicked or returned
	// no result.
	KindToolFailure
	// KindConfiguration: the merge reducer is missing or unknown, or the
	// stage configuration is inconsistent.
	KindConfiguration
	// KindEnforce: an enforce region has no foreground in the final mask.
	KindEnforce
)

func (k ErrorKind) String() string {
	switch k {
	case KindSourceIssue:
		return "source_issue"
	case KindToolFailure:
		return "tool_failure"
	case KindConfiguration:
		return "configuration"
	case KindEnforce:
		return "enforce"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// StageError is the structured error recorded for a failed run.
type StageError struct {
	Kind    ErrorKind
	Stage   StageKind
	ToolID  string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ToolID != "" {
		return fmt.Sprintf("%s in %s (tool %s): %s", e.Kind, e.Stage, e.ToolID, msg)
	}
	return fmt.Sprintf("%s in %s: %s", e.Kind, e.Stage, msg)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *StageError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// SourceIssue wraps a loading or source check error.
func SourceIssue(err error) *StageError {
	return &StageError{Kind: KindSourceIssue, Stage: StageExposureFix, Message: err.Error(), Err: err}
}

// Collector gathers the errors of one run.
type Collector struct {
	errs []*StageError
}

// Add records err. Errors that are not *StageError are recorded as tool
// failures without stage information.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	var se *StageError
	if !errors.As(err, &se) {
		se = &StageError{Kind: KindToolFailure, Message: err.Error(), Err: err}
	}
	c.errs = append(c.errs, se)
}

// Errors returns the recorded errors in order.
func (c *Collector) Errors() []*StageError {
	out := make([]*StageError, len(c.errs))
	copy(out, c.errs)
	return out
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	return len(c.errs)
}

// Err joins the recorded errors, or returns nil.
func (c *Collector) Err() error {
	if len(c.errs) == 0 {
		return nil
	}
	errs := make([]error, len(c.errs))
	for i, e := range c.errs {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Counts returns the number of errors per kind.
func (c *Collector) Counts() map[ErrorKind]int {
	out := make(map[ErrorKind]int)
	for _, e := range c.errs {
		out[e.Kind]++
	}
	return out
}
