package progress

// Completion partitions a list of required main steps by completion state.
type Completion struct {
	CompletedSteps  []string `json:"completed_steps"`
	IncompleteSteps []string `json:"incomplete_steps"`
	AllCompleted    bool     `json:"all_completed"`
}

// EvaluateCompletion checks every required id as a main step. Steps with no
// record are incomplete. Order follows required; duplicates are collapsed.
// Sub-step ids are rejected.
func EvaluateCompletion(doc Document, required []string) (Completion, error) {
	c := Completion{
		CompletedSteps:  []string{},
		IncompleteSteps: []string{},
	}
	seen := make(map[string]bool, len(required))
	for _, stepID := range required {
		if seen[stepID] {
			continue
		}
		seen[stepID] = true

		id, err := ParseStepID(stepID)
		if err != nil {
			return Completion{}, err
		}
		if id.IsSubStep() {
			return Completion{}, &InvalidStepKeyError{StepID: stepID, Reason: "expected a main step id"}
		}
		if main, ok := doc[id.Main]; ok && main.Completed {
			c.CompletedSteps = append(c.CompletedSteps, stepID)
		} else {
			c.IncompleteSteps = append(c.IncompleteSteps, stepID)
		}
	}
	c.AllCompleted = len(c.IncompleteSteps) == 0
	return c, nil
}
