package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/types"
)

// StepMarkResponse represents the response for a step mutation
type StepMarkResponse struct {
	ApplicationID uuid.UUID         `json:"application_id"`
	StepID        string            `json:"step_id"`
	Completed     bool              `json:"completed"`
	Status        lifecycle.Status  `json:"status"`
	MainStep      progress.MainStep `json:"main_step"`
}

// RecomputeResponse reports a main step after recomputation
type RecomputeResponse struct {
	ApplicationID uuid.UUID         `json:"application_id"`
	StepID        string            `json:"step_id"`
	RequiredSubs  []string          `json:"required_sub_steps"`
	MainStep      progress.MainStep `json:"main_step"`
}

// handleMarkStep marks a main or sub step complete or incomplete
func (s *Server) handleMarkStep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	stepID := r.PathValue("step_id")
	parsed, err := progress.ParseStepID(stepID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	var req types.MarkStepRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.serviceError(w, r, err)
		return
	}

	app, err := s.service.MarkStep(r.Context(), id, progress.MarkCommand{
		StepID:    stepID,
		Completed: *req.Completed,
		RecordIDs: req.RecordIDs,
		Metadata:  req.Metadata,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	completed, err := progress.IsStepCompleted(app.StepProgress, stepID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, StepMarkResponse{
		ApplicationID: app.ID,
		StepID:        stepID,
		Completed:     completed,
		Status:        app.Status,
		MainStep:      app.StepProgress[parsed.Main],
	})
}

// handleGetStep returns the completion flag and record of one step
func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	state, err := s.service.StepState(r.Context(), id, r.PathValue("step_id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

// handleRecomputeStep re-derives a main step from its registry sub-steps
func (s *Server) handleRecomputeStep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	stepID := r.PathValue("step_id")
	app, required, err := s.service.RecomputeStep(r.Context(), id, stepID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, RecomputeResponse{
		ApplicationID: app.ID,
		StepID:        stepID,
		RequiredSubs:  required,
		MainStep:      app.StepProgress[stepID],
	})
}
