// Package lifecycle defines the coarse status of a bond estimation application
// and the table of events that move it between statuses.
package lifecycle

import (
	"errors"
	"fmt"
)

// Status is the coarse application status.
type Status string

// Application statuses
const (
	StatusDraft               Status = "DRAFT"
	StatusInProgress          Status = "IN_PROGRESS"
	StatusReadyForCalculation Status = "READY_FOR_CALCULATION"
	StatusCompleted           Status = "COMPLETED"
	StatusSubmitted           Status = "SUBMITTED"
	StatusArchived            Status = "ARCHIVED"
)

// Event drives a status transition.
type Event string

// Lifecycle events
const (
	// EventStepMarked fires after every successful step mutation.
	EventStepMarked Event = "step_marked"
	EventMarkReady  Event = "mark_ready"
	EventCalculate  Event = "calculate"
	// EventSubmit is the terminal submission. Callers must check the
	// completion gate before applying it.
	EventSubmit  Event = "submit"
	EventArchive Event = "archive"
)

// ErrAlreadySubmitted is returned when EventSubmit is applied to a submitted
// application.
var ErrAlreadySubmitted = errors.New("application already submitted")

// TransitionError reports an event that is not valid in the current status.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to application in status %s", e.Event, e.From)
}

// transitions is the state x event table. Events missing for a status are
// rejected.
var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventStepMarked: StatusInProgress,
		EventSubmit:     StatusSubmitted,
	},
	StatusInProgress: {
		EventStepMarked: StatusInProgress,
		EventMarkReady:  StatusReadyForCalculation,
		EventSubmit:     StatusSubmitted,
	},
	StatusReadyForCalculation: {
		EventStepMarked: StatusReadyForCalculation,
		EventCalculate:  StatusCompleted,
		EventSubmit:     StatusSubmitted,
	},
	StatusCompleted: {
		EventStepMarked: StatusCompleted,
		EventSubmit:     StatusSubmitted,
		EventArchive:    StatusArchived,
	},
	StatusSubmitted: {
		EventStepMarked: StatusSubmitted,
		EventArchive:    StatusArchived,
	},
	StatusArchived: {
		EventStepMarked: StatusArchived,
	},
}

// Next returns the status reached by applying event in status from.
func Next(from Status, event Event) (Status, error) {
	if from == StatusSubmitted && event == EventSubmit {
		return from, ErrAlreadySubmitted
	}
	to, ok := transitions[from][event]
	if !ok {
		return from, &TransitionError{From: from, Event: event}
	}
	return to, nil
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown status: %s", s)
	}
	return st, nil
}

// ParseEvent validates an event name.
func ParseEvent(s string) (Event, error) {
	switch e := Event(s); e {
	case EventStepMarked, EventMarkReady, EventCalculate, EventSubmit, EventArchive:
		return e, nil
	default:
		return "", fmt.Errorf("unknown event: %s", s)
	}
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusDraft,
		StatusInProgress,
		StatusReadyForCalculation,
		StatusCompleted,
		StatusSubmitted,
		StatusArchived,
	}
}
