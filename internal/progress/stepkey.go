// Package progress implements the step-progress document kept on every bond
// estimation application: step ids, the document shape, mutation and query
// operations, and the completion gate used before submission.
//
// Every operation here is a pure function over an in-memory Document. Callers
// own the read-lock-write cycle around persistence.
package progress

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStepKey is matched by every *InvalidStepKeyError.
var ErrInvalidStepKey = errors.New("invalid step key")

// InvalidStepKeyError reports a step id that cannot be parsed.
type InvalidStepKeyError struct {
	StepID string
	Reason string
}

func (e *InvalidStepKeyError) Error() string {
	return fmt.Sprintf("invalid step key %q: %s", e.StepID, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidStepKey) match.
func (e *InvalidStepKeyError) Is(target error) bool {
	return target == ErrInvalidStepKey
}

// StepID is a parsed step identifier. Main is the part before the first dot;
// Sub is the full original id when a dot is present, empty otherwise.
type StepID struct {
	Main string
	Sub  string
}

// ParseStepID splits a dotted step id on its first dot only, so "4.2.1"
// yields Main "4" and Sub "4.2.1".
func ParseStepID(s string) (StepID, error) {
	if s == "" {
		return StepID{}, &InvalidStepKeyError{StepID: s, Reason: "step id is empty"}
	}
	if strings.TrimSpace(s) != s {
		return StepID{}, &InvalidStepKeyError{StepID: s, Reason: "step id has surrounding whitespace"}
	}

	main, _, found := strings.Cut(s, ".")
	if main == "" {
		return StepID{}, &InvalidStepKeyError{StepID: s, Reason: "main step id is empty"}
	}
	if !found {
		return StepID{Main: main}, nil
	}
	if strings.HasSuffix(s, ".") {
		return StepID{}, &InvalidStepKeyError{StepID: s, Reason: "sub-step suffix is empty"}
	}
	return StepID{Main: main, Sub: s}, nil
}

// MustParseStepID is ParseStepID for ids known at compile time.
func MustParseStepID(s string) StepID {
	id, err := ParseStepID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsSubStep reports whether the id addresses a sub-step.
func (id StepID) IsSubStep() bool {
	return id.Sub != ""
}

// String returns the original step id.
func (id StepID) String() string {
	if id.Sub != "" {
		return id.Sub
	}
	return id.Main
}
