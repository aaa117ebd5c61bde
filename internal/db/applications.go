package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/types"
)

// -----------------------------------------------------------------------------
// Application Methods
// -----------------------------------------------------------------------------

const applicationColumns = `id, company_id, company_name, status, step_progress, submitted_at, created_at, updated_at`

// CreateApplication creates a DRAFT application with an empty step progress document
func (db *DB) CreateApplication(ctx context.Context, companyID uuid.UUID, companyName string) (*types.Application, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO bond_applications (company_id, company_name, status)
		 VALUES ($1, $2, $3)
		 RETURNING `+applicationColumns,
		companyID, companyName, string(lifecycle.StatusDraft),
	)
	app, err := scanApplication(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return app, nil
}

// GetApplication retrieves an application by ID; nil when it does not exist
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM bond_applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListApplications lists applications, newest first
func (db *DB) ListApplications(ctx context.Context, filters types.ApplicationFilters) ([]types.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM bond_applications WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}
	if filters.CompanyID != uuid.Nil {
		query += fmt.Sprintf(" AND company_id = $%d", argNum)
		args = append(args, filters.CompanyID)
		argNum++
	}
	query += " ORDER BY created_at DESC, id"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []types.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// DeleteApplication deletes an application
func (db *DB) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM bond_applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ErrApplicationNotFound{ID: id}
	}
	return nil
}

// UpdateApplication locks the application row with SELECT ... FOR UPDATE,
// applies fn and writes the result back in the same transaction
func (db *DB) UpdateApplication(ctx context.Context, id uuid.UUID, fn func(app *types.Application) error) (*types.Application, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM bond_applications WHERE id = $1 FOR UPDATE`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &types.ErrApplicationNotFound{ID: id}
		}
		return nil, fmt.Errorf("failed to lock application: %w", err)
	}

	if err := fn(app); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(app.StepProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step progress: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE bond_applications
		 SET status = $1, step_progress = $2, submitted_at = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING updated_at`,
		string(app.Status), doc, app.SubmittedAt, id,
	).Scan(&app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit application update: %w", err)
	}
	return app, nil
}

func scanApplication(row pgx.Row) (*types.Application, error) {
	var (
		app         types.Application
		status      string
		docJSON     []byte
		submittedAt *time.Time
	)
	err := row.Scan(&app.ID, &app.CompanyID, &app.CompanyName, &status, &docJSON,
		&submittedAt, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if app.Status, err = lifecycle.ParseStatus(status); err != nil {
		return nil, err
	}
	if app.StepProgress, err = progress.ParseDocument(docJSON); err != nil {
		return nil, fmt.Errorf("application %s: %w", app.ID, err)
	}
	app.SubmittedAt = submittedAt
	return &app, nil
}
