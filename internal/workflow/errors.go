package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SubmissionBlockedError is returned when submission is attempted before every
// required main step is complete.
type SubmissionBlockedError struct {
	ApplicationID uuid.UUID
	Incomplete    []string
}

func (e *SubmissionBlockedError) Error() string {
	return fmt.Sprintf("application %s cannot be submitted: incomplete steps [%s]",
		e.ApplicationID, strings.Join(e.Incomplete, ", "))
}
