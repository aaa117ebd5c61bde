package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/schemas"
	"github.com/jonathan/bond-onboarding/internal/types"
	"github.com/jonathan/bond-onboarding/internal/workflow/steps"
)

// tracerName is the instrumentation scope for workflow spans.
const tracerName = "github.com/jonathan/bond-onboarding/internal/workflow"

// maxConcurrentSummaries bounds the store reads issued by Summaries.
const maxConcurrentSummaries = 8

// Service runs step mutations, status summaries and lifecycle transitions
// against stored applications.
type Service struct {
	store    Store
	registry *steps.Registry
	tracker  *progress.Tracker
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTracker replaces the default step tracker.
func WithTracker(t *progress.Tracker) Option {
	return func(s *Service) {
		s.tracker = t
	}
}

// WithTracer sets the tracer used for service spans. The global provider is
// used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithClock overrides the time source for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a workflow service.
func NewService(store Store, registry *steps.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		tracker:  progress.NewTracker(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the step registry the service gates submission with.
func (s *Service) Registry() *steps.Registry {
	return s.registry
}

// StepStatus is the state of one step of an application.
type StepStatus struct {
	ApplicationID uuid.UUID      `json:"application_id"`
	StepID        string         `json:"step_id"`
	Completed     bool           `json:"completed"`
	State         map[string]any `json:"state"`
}

// StatusSummary reports aggregate completion of the required main steps.
type StatusSummary struct {
	ApplicationID   uuid.UUID        `json:"application_id"`
	Status          lifecycle.Status `json:"status"`
	RegistryVersion string           `json:"registry_version"`
	progress.Completion
}

// CreateApplication opens a new application in DRAFT with an empty document.
func (s *Service) CreateApplication(ctx context.Context, req *types.CreateApplicationRequest) (*types.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("invalid company_id: %w", err)
	}
	app, err := s.store.CreateApplication(ctx, companyID, req.CompanyName)
	if err != nil {
		return nil, err
	}
	log.Printf("[workflow] created application %s for company %s", app.ID, companyID)
	return app, nil
}

// GetApplication returns an application or *types.ErrApplicationNotFound.
func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, &types.ErrApplicationNotFound{ID: id}
	}
	return app, nil
}

// ListApplications lists applications matching filters.
func (s *Service) ListApplications(ctx context.Context, filters types.ApplicationFilters) ([]types.Application, error) {
	return s.store.ListApplications(ctx, filters)
}

// DeleteApplication deletes an application and its progress document.
func (s *Service) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteApplication(ctx, id); err != nil {
		return err
	}
	log.Printf("[workflow] deleted application %s", id)
	return nil
}

// MarkStep records a step mutation and moves a DRAFT application to
// IN_PROGRESS. The status never moves back to DRAFT. A sub-step mutation under
// a main step with registry sub-steps re-derives the main flag from exactly
// those sub-steps, so untouched required sub-steps keep it incomplete.
func (s *Service) MarkStep(ctx context.Context, id uuid.UUID, cmd progress.MarkCommand) (app *types.Application, err error) {
	ctx, span := s.startSpan(ctx, "workflow.MarkStep", id,
		attribute.String("bond.step.id", cmd.StepID),
		attribute.Bool("bond.step.completed", cmd.Completed),
	)
	defer func() { endSpan(span, err) }()

	stepID, err := progress.ParseStepID(cmd.StepID)
	if err != nil {
		return nil, err
	}
	if def, ok := s.registry.Lookup(stepID.Main); ok && stepID.IsSubStep() {
		cmd.RequiredSubSteps = def.SubSteps
	}

	return s.store.UpdateApplication(ctx, id, func(app *types.Application) error {
		doc, err := s.tracker.Mark(app.StepProgress, cmd)
		if err != nil {
			return err
		}
		if err := schemas.ValidateStepProgressValue(doc); err != nil {
			return fmt.Errorf("step %s produced an invalid document: %w", cmd.StepID, err)
		}
		app.StepProgress = doc
		return s.apply(app, lifecycle.EventStepMarked)
	})
}

// RecomputeStep re-derives a main step's completion from the sub-steps the
// registry requires for it and returns those sub-steps. Callers invoke it
// after a record mapping to a required sub-step changes outside MarkStep.
func (s *Service) RecomputeStep(ctx context.Context, id uuid.UUID, mainID string) (app *types.Application, required []string, err error) {
	ctx, span := s.startSpan(ctx, "workflow.RecomputeStep", id, attribute.String("bond.step.id", mainID))
	defer func() { endSpan(span, err) }()

	required, err = s.registry.RequiredSubSteps(mainID)
	if err != nil {
		return nil, nil, err
	}

	app, err = s.store.UpdateApplication(ctx, id, func(app *types.Application) error {
		doc, err := s.tracker.UpdateStepStatus(app.StepProgress, mainID, required)
		if err != nil {
			return err
		}
		app.StepProgress = doc
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return app, required, nil
}

// StepState returns the completion flag and full record of a step.
func (s *Service) StepState(ctx context.Context, id uuid.UUID, stepID string) (*StepStatus, error) {
	if _, err := progress.ParseStepID(stepID); err != nil {
		return nil, err
	}
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	completed, err := progress.IsStepCompleted(app.StepProgress, stepID)
	if err != nil {
		return nil, err
	}
	state, err := progress.StepState(app.StepProgress, stepID)
	if err != nil {
		return nil, err
	}
	return &StepStatus{ApplicationID: id, StepID: stepID, Completed: completed, State: state}, nil
}

// Status evaluates the registry's required main steps for one application.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*StatusSummary, error) {
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.summarize(app)
}

// Summaries evaluates several applications concurrently. Results follow the
// order of ids; the first failure cancels the rest.
func (s *Service) Summaries(ctx context.Context, ids []uuid.UUID) ([]StatusSummary, error) {
	out := make([]StatusSummary, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSummaries)
	for i, id := range ids {
		g.Go(func() error {
			summary, err := s.Status(ctx, id)
			if err != nil {
				return err
			}
			out[i] = *summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit performs the terminal submission. It is refused with
// *SubmissionBlockedError while any required main step is incomplete and with
// lifecycle.ErrAlreadySubmitted on repeat attempts; neither writes anything.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (app *types.Application, err error) {
	ctx, span := s.startSpan(ctx, "workflow.Submit", id)
	defer func() { endSpan(span, err) }()

	return s.store.UpdateApplication(ctx, id, func(app *types.Application) error {
		if app.Status == lifecycle.StatusSubmitted {
			return lifecycle.ErrAlreadySubmitted
		}

		completion, err := progress.EvaluateCompletion(app.StepProgress, s.registry.RequiredMainSteps())
		if err != nil {
			return err
		}
		if !completion.AllCompleted {
			return &SubmissionBlockedError{ApplicationID: app.ID, Incomplete: completion.IncompleteSteps}
		}

		if err := s.apply(app, lifecycle.EventSubmit); err != nil {
			return err
		}
		if app.SubmittedAt == nil {
			now := s.now().UTC()
			app.SubmittedAt = &now
		}
		return nil
	})
}

// Transition applies a lifecycle event that needs no completion check.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, event lifecycle.Event) (app *types.Application, err error) {
	ctx, span := s.startSpan(ctx, "workflow.Transition", id, attribute.String("bond.event", string(event)))
	defer func() { endSpan(span, err) }()

	switch event {
	case lifecycle.EventSubmit, lifecycle.EventStepMarked:
		return nil, fmt.Errorf("event %s cannot be applied directly", event)
	}
	return s.store.UpdateApplication(ctx, id, func(app *types.Application) error {
		return s.apply(app, event)
	})
}

func (s *Service) apply(app *types.Application, event lifecycle.Event) error {
	next, err := lifecycle.Next(app.Status, event)
	if err != nil {
		return err
	}
	if next != app.Status {
		log.Printf("[workflow] application %s: %s -> %s (%s)", app.ID, app.Status, next, event)
		app.Status = next
	}
	return nil
}

func (s *Service) summarize(app *types.Application) (*StatusSummary, error) {
	completion, err := progress.EvaluateCompletion(app.StepProgress, s.registry.RequiredMainSteps())
	if err != nil {
		return nil, err
	}
	return &StatusSummary{
		ApplicationID:   app.ID,
		Status:          app.Status,
		RegistryVersion: s.registry.Version,
		Completion:      completion,
	}, nil
}

func (s *Service) startSpan(ctx context.Context, name string, id uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("bond.application.id", id.String()))
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// IsRejection reports whether err is an expected refusal rather than a
// failure of the service or its store.
func IsRejection(err error) bool {
	var blocked *SubmissionBlockedError
	var transition *lifecycle.TransitionError
	return errors.As(err, &blocked) ||
		errors.As(err, &transition) ||
		errors.Is(err, lifecycle.ErrAlreadySubmitted) ||
		errors.Is(err, progress.ErrInvalidStepKey)
}
