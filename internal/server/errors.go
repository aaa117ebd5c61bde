// Package server provides the HTTP REST API for bond application onboarding.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/types"
	"github.com/jonathan/bond-onboarding/internal/workflow"
	"github.com/jonathan/bond-onboarding/internal/workflow/steps"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation  *ErrValidation
		fields      validator.ValidationErrors
		unknownStep *steps.UnknownStepError
		notFound    *types.ErrApplicationNotFound
		blocked     *workflow.SubmissionBlockedError
		transition  *lifecycle.TransitionError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &fields),
		errors.Is(err, progress.ErrInvalidStepKey), errors.As(err, &unknownStep):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrAlreadySubmitted), errors.As(err, &blocked), errors.As(err, &transition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the JSON error payload for err. Server errors do not
// expose their message.
func errorBody(status int, err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "internal server error"
	}

	var blocked *workflow.SubmissionBlockedError
	if errors.As(err, &blocked) {
		body["incomplete_steps"] = blocked.Incomplete
	}
	var transition *lifecycle.TransitionError
	if errors.As(err, &transition) {
		body["status"] = transition.From
	}
	return body
}
