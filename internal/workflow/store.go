// Package workflow wires the step progress tracker, the completion gate and the
// application lifecycle to a persistent store.
package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/bond-onboarding/internal/types"
)

// Store persists applications.
//
// UpdateApplication must hold an exclusive row lock on the application for the
// whole read-modify-write cycle. The progress document is written back
// wholesale, so without the lock a concurrent writer silently loses updates to
// sibling steps.
type Store interface {
	CreateApplication(ctx context.Context, companyID uuid.UUID, companyName string) (*types.Application, error)
	// GetApplication returns nil, nil when the application does not exist.
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	ListApplications(ctx context.Context, filters types.ApplicationFilters) ([]types.Application, error)
	// DeleteApplication removes the application and its progress document.
	DeleteApplication(ctx context.Context, id uuid.UUID) error
	// UpdateApplication loads the application under lock, calls fn and persists
	// status, step progress and submission time unless fn fails. It returns
	// *types.ErrApplicationNotFound when the application does not exist.
	UpdateApplication(ctx context.Context, id uuid.UUID, fn func(app *types.Application) error) (*types.Application, error)
}
