package progress

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarkCommand is a single step mutation.
type MarkCommand struct {
	StepID    string
	Completed bool
	// RecordIDs are unioned into the sub-step's existing ids. Ignored for
	// main-step updates.
	RecordIDs []string
	// Metadata, when non-nil, replaces the record's metadata.
	Metadata map[string]any
	// RequiredSubSteps, when non-empty on a sub-step update, are the only
	// sub-steps the main flag is derived from; other known sub-steps are
	// ignored and missing ones count as incomplete. When empty, every known
	// sub-step must be complete. Ignored for main-step updates.
	RequiredSubSteps []string
}

// Tracker applies step mutations to documents. The zero value is not usable;
// construct one with NewTracker.
type Tracker struct {
	now                      func() time.Time
	clearCompletedAtOnRevert bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithClearCompletedAtOnRevert drops completed_at when a record goes back to
// incomplete. By default the old timestamp stays as a historical marker.
func WithClearCompletedAtOnRevert(clear bool) Option {
	return func(t *Tracker) {
		t.clearCompletedAtOnRevert = clear
	}
}

// NewTracker creates a tracker stamping UTC wall-clock time.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mark applies cmd to a copy of doc and returns the copy. doc is not modified.
func (t *Tracker) Mark(doc Document, cmd MarkCommand) (Document, error) {
	id, err := ParseStepID(cmd.StepID)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	out := doc.Clone()
	main, ok := out[id.Main]
	if !ok {
		main = MainStep{Sub: map[string]SubStep{}}
	}

	if id.IsSubStep() {
		if err := checkSubStepsOf(id.Main, cmd.RequiredSubSteps); err != nil {
			return nil, err
		}

		sub := main.Sub[id.Sub]
		sub.UpdatedAt = notBefore(now, sub.UpdatedAt)
		sub.CompletedAt = t.completedAt(sub.Completed, cmd.Completed, sub.CompletedAt, sub.UpdatedAt)
		sub.Completed = cmd.Completed
		sub.RecordIDs = mergeRecordIDs(sub.RecordIDs, cmd.RecordIDs)
		if cmd.Metadata != nil {
			sub.Metadata = cloneMetadata(cmd.Metadata)
		}
		main.Sub[id.Sub] = sub

		stamp := stampMain(&main, now)
		completed := main.allSubStepsCompleted()
		if len(cmd.RequiredSubSteps) > 0 {
			completed = main.subStepsCompleted(cmd.RequiredSubSteps)
		}
		main.CompletedAt = t.completedAt(main.Completed, completed, main.CompletedAt, stamp)
		main.Completed = completed
	} else {
		stamp := stampMain(&main, now)
		main.CompletedAt = t.completedAt(main.Completed, cmd.Completed, main.CompletedAt, stamp)
		main.Completed = cmd.Completed
		if cmd.Metadata != nil {
			main.Metadata = cloneMetadata(cmd.Metadata)
		}
	}

	out[id.Main] = main
	return out, nil
}

// UpdateStepStatus recomputes a main step's completed flag from a curated list
// of required sub-steps, ignoring any other sub keys under it. Missing
// sub-records count as incomplete. An empty list leaves the flag unchanged.
func (t *Tracker) UpdateStepStatus(doc Document, mainID string, requiredSubs []string) (Document, error) {
	id, err := ParseStepID(mainID)
	if err != nil {
		return nil, err
	}
	if id.IsSubStep() {
		return nil, &InvalidStepKeyError{StepID: mainID, Reason: "expected a main step id"}
	}
	if err := checkSubStepsOf(id.Main, requiredSubs); err != nil {
		return nil, err
	}

	out := doc.Clone()
	if len(requiredSubs) == 0 {
		return out, nil
	}

	main, ok := out[id.Main]
	if !ok {
		main = MainStep{Sub: map[string]SubStep{}}
	}
	completed := main.subStepsCompleted(requiredSubs)

	stamp := stampMain(&main, t.now().UTC())
	main.CompletedAt = t.completedAt(main.Completed, completed, main.CompletedAt, stamp)
	main.Completed = completed
	out[id.Main] = main
	return out, nil
}

// IsStepCompleted reports whether a main step or sub-step is complete. Absent
// records are not complete.
func IsStepCompleted(doc Document, stepID string) (bool, error) {
	id, err := ParseStepID(stepID)
	if err != nil {
		return false, err
	}
	main, ok := doc[id.Main]
	if !ok {
		return false, nil
	}
	if id.IsSubStep() {
		return main.Sub[id.Sub].Completed, nil
	}
	return main.Completed, nil
}

// StepState returns the record of a step as a JSON-compatible mapping, or an
// empty mapping when the record does not exist.
func StepState(doc Document, stepID string) (map[string]any, error) {
	id, err := ParseStepID(stepID)
	if err != nil {
		return nil, err
	}
	main, ok := doc[id.Main]
	if !ok {
		return map[string]any{}, nil
	}

	var record any = main
	if id.IsSubStep() {
		sub, ok := main.Sub[id.Sub]
		if !ok {
			return map[string]any{}, nil
		}
		record = sub
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step %s: %w", stepID, err)
	}
	state := map[string]any{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode step %s: %w", stepID, err)
	}
	return state, nil
}

// notBefore keeps timestamps monotonic when the clock steps backwards.
func notBefore(now, prev time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}

// checkSubStepsOf rejects ids that are not sub-steps of mainID.
func checkSubStepsOf(mainID string, subs []string) error {
	for _, s := range subs {
		sid, err := ParseStepID(s)
		if err != nil {
			return err
		}
		if !sid.IsSubStep() || sid.Main != mainID {
			return &InvalidStepKeyError{StepID: s, Reason: fmt.Sprintf("not a sub-step of %q", mainID)}
		}
	}
	return nil
}

func stampMain(main *MainStep, now time.Time) time.Time {
	if main.UpdatedAt != nil {
		now = notBefore(now, *main.UpdatedAt)
	}
	main.UpdatedAt = &now
	return now
}

// completedAt stamps on the transition into completed and applies the revert
// policy on the transition out of it.
func (t *Tracker) completedAt(was, is bool, current *time.Time, now time.Time) *time.Time {
	switch {
	case is && !was:
		return &now
	case is && current == nil:
		return &now
	case !is && was && t.clearCompletedAtOnRevert:
		return nil
	default:
		return current
	}
}
