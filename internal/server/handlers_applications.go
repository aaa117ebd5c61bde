package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/server/middleware"
	"github.com/jonathan/bond-onboarding/internal/types"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// maxListLimit caps the page size of list endpoints.
const maxListLimit = 500

// TransitionResponse reports the status after a lifecycle event
type TransitionResponse struct {
	ApplicationID uuid.UUID        `json:"application_id"`
	Event         lifecycle.Event  `json:"event"`
	Status        lifecycle.Status `json:"status"`
}

// ProgressResponse wraps the full step progress document
type ProgressResponse struct {
	ApplicationID uuid.UUID        `json:"application_id"`
	Status        lifecycle.Status `json:"status"`
	StepProgress  any              `json:"step_progress"`
}

// decodeJSON decodes the request body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// applicationID parses the {id} path value and hides applications outside
// the caller's company scope.
func (s *Server) applicationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid application id")
		return uuid.Nil, false
	}
	if !s.checkScope(w, r, id) {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) checkScope(w http.ResponseWriter, r *http.Request, id uuid.UUID) bool {
	scope := middleware.CompanyScope(r)
	if scope == uuid.Nil {
		return true
	}
	app, err := s.service.GetApplication(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return false
	}
	if app.CompanyID != scope {
		s.serviceError(w, r, &types.ErrApplicationNotFound{ID: id})
		return false
	}
	return true
}

// handleCreateApplication opens a new DRAFT application
func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req types.CreateApplicationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if scope := middleware.CompanyScope(r); scope != uuid.Nil && req.CompanyID != scope.String() {
		s.errorResponse(w, http.StatusForbidden, "Token is not valid for this company")
		return
	}

	app, err := s.service.CreateApplication(r.Context(), &req)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, app)
}

// handleListApplications lists applications, filtered by status, company_id and limit
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	filters, err := parseApplicationFilters(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if scope := middleware.CompanyScope(r); scope != uuid.Nil {
		if filters.CompanyID != uuid.Nil && filters.CompanyID != scope {
			s.jsonResponse(w, http.StatusOK, map[string]any{"applications": []types.Application{}, "count": 0})
			return
		}
		filters.CompanyID = scope
	}

	apps, err := s.service.ListApplications(r.Context(), filters)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"applications": apps, "count": len(apps)})
}

func parseApplicationFilters(r *http.Request) (types.ApplicationFilters, error) {
	var filters types.ApplicationFilters
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status, err := lifecycle.ParseStatus(v)
		if err != nil {
			return filters, &ErrValidation{Field: "status", Message: err.Error()}
		}
		filters.Status = status
	}
	if v := q.Get("company_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filters, &ErrValidation{Field: "company_id", Message: "must be a UUID"}
		}
		filters.CompanyID = id
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			return filters, &ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxListLimit)}
		}
		filters.Limit = limit
	}
	return filters, nil
}

// handleGetApplication returns one application
func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	app, err := s.service.GetApplication(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

// handleDeleteApplication deletes an application with its progress document
func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteApplication(r.Context(), id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetProgress returns the full step progress document
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	app, err := s.service.GetApplication(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ProgressResponse{
		ApplicationID: app.ID,
		Status:        app.Status,
		StepProgress:  app.StepProgress,
	})
}

// handleStatus returns the completion summary over the required main steps
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	summary, err := s.service.Status(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// handleSummaries returns completion summaries for a comma-separated ids list
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		s.errorResponse(w, http.StatusBadRequest, "ids is required")
		return
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxListLimit {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("at most %d ids are allowed", maxListLimit))
		return
	}
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid application id: %s", p))
			return
		}
		if !s.checkScope(w, r, id) {
			return
		}
		ids = append(ids, id)
	}

	summaries, err := s.service.Summaries(r.Context(), ids)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"summaries": summaries, "count": len(summaries)})
}

// handleTransition applies mark_ready, calculate or archive
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	var req types.TransitionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.serviceError(w, r, err)
		return
	}
	event, err := lifecycle.ParseEvent(req.Event)
	if err != nil {
		s.serviceError(w, r, &ErrValidation{Field: "event", Message: err.Error()})
		return
	}

	app, err := s.service.Transition(r.Context(), id, event)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, TransitionResponse{ApplicationID: app.ID, Event: event, Status: app.Status})
}

// handleSubmit performs the gated terminal submission
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	app, err := s.service.Submit(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}
