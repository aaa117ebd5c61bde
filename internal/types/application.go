// Package types provides type definitions for structured data shared by the
// stores, the workflow service and the HTTP API.
package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/progress"
)

// Application is a bond estimation application together with its step
// progress document.
type Application struct {
	ID           uuid.UUID         `json:"id"`
	CompanyID    uuid.UUID         `json:"company_id"`
	CompanyName  string            `json:"company_name"`
	Status       lifecycle.Status  `json:"status"`
	StepProgress progress.Document `json:"step_progress"`
	SubmittedAt  *time.Time        `json:"submitted_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ApplicationFilters holds optional filters for listing applications
type ApplicationFilters struct {
	Status    lifecycle.Status
	CompanyID uuid.UUID
	Limit     int
}

// CreateApplicationRequest represents the request to open a new application.
type CreateApplicationRequest struct {
	CompanyID   string `json:"company_id" validate:"required,uuid"`
	CompanyName string `json:"company_name" validate:"required,min=1,max=255"`
}

// MarkStepRequest is the body of a step mutation.
type MarkStepRequest struct {
	Completed *bool          `json:"completed" validate:"required"`
	RecordIDs []string       `json:"record_ids,omitempty" validate:"omitempty,max=500,dive,required,max=128"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TransitionRequest asks for a lifecycle event other than submission.
type TransitionRequest struct {
	Event string `json:"event" validate:"required,oneof=mark_ready calculate archive"`
}

// Validate validates the CreateApplicationRequest using the validator.
func (r *CreateApplicationRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the MarkStepRequest using the validator.
func (r *MarkStepRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the TransitionRequest using the validator.
func (r *TransitionRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ErrApplicationNotFound indicates the application does not exist
type ErrApplicationNotFound struct {
	ID uuid.UUID
}

func (e *ErrApplicationNotFound) Error() string {
	return fmt.Sprintf("application not found: %s", e.ID)
}
