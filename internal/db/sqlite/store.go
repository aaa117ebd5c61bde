// Package sqlite provides an embedded SQLite store for applications, used by
// the CLI and tests when no PostgreSQL database is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/types"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS bond_applications (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL,
	company_name  TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'DRAFT',
	step_progress TEXT NOT NULL DEFAULT '{}',
	submitted_at  TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bond_applications_company ON bond_applications(company_id);
CREATE INDEX IF NOT EXISTS idx_bond_applications_status ON bond_applications(status);
`

const selectColumns = `id, company_id, company_name, status, step_progress, submitted_at, created_at, updated_at`

// Store persists applications in a single SQLite database file. All access
// goes through one connection, which serializes read-modify-write cycles.
type Store struct {
	db *sql.DB
}

// Open opens (creating when needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the application table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CreateApplication inserts a DRAFT application with an empty document.
func (s *Store) CreateApplication(ctx context.Context, companyID uuid.UUID, companyName string) (*types.Application, error) {
	now := time.Now().UTC()
	app := &types.Application{
		ID:           uuid.New(),
		CompanyID:    companyID,
		CompanyName:  companyName,
		Status:       lifecycle.StatusDraft,
		StepProgress: progress.Document{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bond_applications (id, company_id, company_name, status, step_progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '{}', ?, ?)`,
		app.ID.String(), companyID.String(), companyName, string(app.Status),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return app, nil
}

// GetApplication returns nil, nil when the application does not exist.
func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM bond_applications WHERE id = ?`, id.String())
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListApplications returns applications newest first.
func (s *Store) ListApplications(ctx context.Context, filters types.ApplicationFilters) ([]types.Application, error) {
	query := `SELECT ` + selectColumns + ` FROM bond_applications`
	var where []string
	var args []any
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filters.Status))
	}
	if filters.CompanyID != uuid.Nil {
		where = append(where, "company_id = ?")
		args = append(args, filters.CompanyID.String())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// DeleteApplication removes an application.
func (s *Store) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bond_applications WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &types.ErrApplicationNotFound{ID: id}
	}
	return nil
}

// UpdateApplication runs fn inside a transaction on the single connection.
func (s *Store) UpdateApplication(ctx context.Context, id uuid.UUID, fn func(app *types.Application) error) (*types.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM bond_applications WHERE id = ?`, id.String())
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.ErrApplicationNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}

	if err := fn(app); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(app.StepProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step progress: %w", err)
	}
	app.UpdatedAt = time.Now().UTC()

	var submittedAt sql.NullString
	if app.SubmittedAt != nil {
		submittedAt = sql.NullString{String: formatTime(*app.SubmittedAt), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bond_applications
		 SET status = ?, step_progress = ?, submitted_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(app.Status), string(doc), submittedAt, formatTime(app.UpdatedAt), id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit application update: %w", err)
	}
	return app, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*types.Application, error) {
	var (
		app                  types.Application
		id, companyID        string
		status, doc          string
		submittedAt          sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &companyID, &app.CompanyName, &status, &doc, &submittedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if app.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid application id %q: %w", id, err)
	}
	if app.CompanyID, err = uuid.Parse(companyID); err != nil {
		return nil, fmt.Errorf("invalid company id %q: %w", companyID, err)
	}
	if app.Status, err = lifecycle.ParseStatus(status); err != nil {
		return nil, err
	}
	if app.StepProgress, err = progress.ParseDocument([]byte(doc)); err != nil {
		return nil, err
	}
	if submittedAt.Valid {
		t, err := parseTime(submittedAt.String)
		if err != nil {
			return nil, err
		}
		app.SubmittedAt = &t
	}
	if app.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if app.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &app, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
