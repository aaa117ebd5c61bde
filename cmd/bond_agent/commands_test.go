package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/bond-onboarding/internal/config"
	"github.com/jonathan/bond-onboarding/internal/server"
	"github.com/jonathan/bond-onboarding/internal/types"
	"github.com/jonathan/bond-onboarding/internal/workflow"
)

const testCompanyID = "7d9f3c2a-1b4e-4f6a-9c8d-2e5f7a1b3c4d"

func createViaCLI(t *testing.T, dbPath string) types.Application {
	t.Helper()
	out, err := executeCommand(t, "--sqlite-path", dbPath, "create",
		"--company-id", testCompanyID, "--company-name", "Acme Builders")
	require.NoError(t, err)

	var app types.Application
	mustDecode(t, out, &app)
	return app
}

func TestCreateCommand(t *testing.T) {
	dbPath := isolateEnv(t)

	app := createViaCLI(t, dbPath)
	assert.NotEqual(t, uuid.Nil, app.ID)
	assert.Equal(t, "Acme Builders", app.CompanyName)
	assert.Equal(t, "DRAFT", string(app.Status))
	assert.Empty(t, app.StepProgress)
}

func TestCreateCommand_MissingFlag(t *testing.T) {
	dbPath := isolateEnv(t)

	_, err := executeCommand(t, "--sqlite-path", dbPath, "create", "--company-id", testCompanyID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestCreateCommand_InvalidCompanyID(t *testing.T) {
	dbPath := isolateEnv(t)

	_, err := executeCommand(t, "--sqlite-path", dbPath, "create",
		"--company-id", "not-a-uuid", "--company-name", "Acme")
	assert.Error(t, err)
}

func TestMarkStepCommand_RecordsSubStep(t *testing.T) {
	dbPath := isolateEnv(t)
	app := createViaCLI(t, dbPath)

	out, err := executeCommand(t, "--sqlite-path", dbPath, "mark-step",
		"-a", app.ID.String(), "-s", "2.1", "--record-id", "doc-b", "--record-id", "doc-a",
		"--metadata", `{"source":"cli"}`)
	require.NoError(t, err)

	var resp struct {
		Status   string `json:"status"`
		MainStep struct {
			Completed bool `json:"completed"`
			Sub       map[string]struct {
				Completed bool           `json:"completed"`
				RecordIDs []string       `json:"record_ids"`
				Metadata  map[string]any `json:"metadata"`
			} `json:"sub"`
		} `json:"main_step"`
	}
	mustDecode(t, out, &resp)

	assert.Equal(t, "IN_PROGRESS", resp.Status)
	assert.False(t, resp.MainStep.Completed, "2.2 and 2.3 are still required")
	sub := resp.MainStep.Sub["2.1"]
	assert.True(t, sub.Completed)
	assert.Equal(t, []string{"doc-a", "doc-b"}, sub.RecordIDs)
	assert.Equal(t, "cli", sub.Metadata["source"])
}

func TestMarkStepCommand_RecomputeUsesRegistry(t *testing.T) {
	dbPath := isolateEnv(t)
	app := createViaCLI(t, dbPath)

	out, err := executeCommand(t, "--sqlite-path", dbPath, "mark-step",
		"-a", app.ID.String(), "-s", "2.1", "--recompute")
	require.NoError(t, err)

	var resp struct {
		MainStep struct {
			Completed bool `json:"completed"`
		} `json:"main_step"`
	}
	mustDecode(t, out, &resp)
	// 2.2 and 2.3 are still missing.
	assert.False(t, resp.MainStep.Completed)
}

func TestMarkStepCommand_InvalidStep(t *testing.T) {
	dbPath := isolateEnv(t)
	app := createViaCLI(t, dbPath)

	_, err := executeCommand(t, "--sqlite-path", dbPath, "mark-step", "-a", app.ID.String(), "-s", "2.")
	assert.Error(t, err)
}

func TestStatusAndSubmitCommands(t *testing.T) {
	dbPath := isolateEnv(t)
	app := createViaCLI(t, dbPath)
	id := app.ID.String()

	_, err := executeCommand(t, "--sqlite-path", dbPath, "submit", "-a", id)
	var blocked *workflow.SubmissionBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, blocked.Incomplete)

	for _, step := range []string{"1", "2", "3", "4"} {
		_, err := executeCommand(t, "--sqlite-path", dbPath, "mark-step", "-a", id, "-s", step)
		require.NoError(t, err)
	}

	out, err := executeCommand(t, "--sqlite-path", dbPath, "status", "-a", id)
	require.NoError(t, err)
	var summary workflow.StatusSummary
	mustDecode(t, out, &summary)
	assert.False(t, summary.AllCompleted)
	assert.Equal(t, []string{"5"}, summary.IncompleteSteps)

	_, err = executeCommand(t, "--sqlite-path", dbPath, "mark-step", "-a", id, "-s", "5")
	require.NoError(t, err)

	out, err = executeCommand(t, "--sqlite-path", dbPath, "submit", "-a", id)
	require.NoError(t, err)
	assert.Contains(t, out, "submitted at")

	_, err = executeCommand(t, "--sqlite-path", dbPath, "submit", "-a", id)
	assert.Error(t, err)
}

func TestStatusCommand_MultipleApplications(t *testing.T) {
	dbPath := isolateEnv(t)
	first := createViaCLI(t, dbPath)
	second := createViaCLI(t, dbPath)

	out, err := executeCommand(t, "--sqlite-path", dbPath, "status",
		"-a", first.ID.String(), "-a", second.ID.String())
	require.NoError(t, err)

	var summaries []workflow.StatusSummary
	mustDecode(t, out, &summaries)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ApplicationID)
	assert.Equal(t, second.ID, summaries[1].ApplicationID)
}

func TestStatusCommand_NotFound(t *testing.T) {
	dbPath := isolateEnv(t)

	_, err := executeCommand(t, "--sqlite-path", dbPath, "status", "-a", uuid.New().String())
	var notFound *types.ErrApplicationNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestTransitionCommand(t *testing.T) {
	dbPath := isolateEnv(t)
	app := createViaCLI(t, dbPath)
	id := app.ID.String()

	_, err := executeCommand(t, "--sqlite-path", dbPath, "transition", "-a", id, "-e", "mark_ready")
	assert.Error(t, err, "DRAFT cannot be marked ready")

	_, err = executeCommand(t, "--sqlite-path", dbPath, "mark-step", "-a", id, "-s", "1")
	require.NoError(t, err)

	out, err := executeCommand(t, "--sqlite-path", dbPath, "transition", "-a", id, "-e", "mark_ready")
	require.NoError(t, err)
	assert.Contains(t, out, "READY_FOR_CALCULATION")

	_, err = executeCommand(t, "--sqlite-path", dbPath, "transition", "-a", id, "-e", "submit")
	assert.Error(t, err)
}

func TestRegistryCommand(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(t, "registry")
	require.NoError(t, err)
	assert.Contains(t, out, "version:")
	assert.Contains(t, out, "financial_details")

	out, err = executeCommand(t, "registry", "--json")
	require.NoError(t, err)
	var reg struct {
		Version string `json:"version"`
		Steps   []struct {
			ID string `json:"id"`
		} `json:"steps"`
	}
	mustDecode(t, out, &reg)
	assert.Len(t, reg.Steps, 5)
}

func TestRegistryCommand_InvalidFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"x\"\nsteps:\n  - id: \"2\"\n    sub_steps: [\"3.1\"]\n"), 0o644))

	_, err := executeCommand(t, "--registry", path, "registry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
}

func TestValidateProgressCommand(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
  "1": {"completed": true, "sub": {}},
  "2": {"completed": false, "sub": {"2.1": {"completed": true, "updated_at": "2024-01-01T00:00:00Z", "record_ids": ["a"]}}}
}`), 0o644))
	out, err := executeCommand(t, "validate-progress", "--json", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation passed (2 main steps)")

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"1": {"completed": "yes"}}`), 0o644))
	_, err = executeCommand(t, "validate-progress", "--json", invalid)
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_EXPIRATION_HOURS", "")

	out, err := executeCommand(t, "token", "--subject", "ops@example.com", "--company-id", testCompanyID)
	require.NoError(t, err)

	jwtCfg, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtCfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, uuid.MustParse(testCompanyID), claims.CompanyID)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := executeCommand(t, "token", "--subject", "ops")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	dbPath := isolateEnv(t)

	out, err := executeCommand(t, "--sqlite-path", dbPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration complete")
}

func TestStatusCommand_Pretty(t *testing.T) {
	dbPath := isolateEnv(t)
	app := createViaCLI(t, dbPath)

	_, err := executeCommand(t, "--sqlite-path", dbPath, "mark-step", "-a", app.ID.String(), "-s", "2.1", "--record-id", "r1")
	require.NoError(t, err)

	out, err := executeCommand(t, "--sqlite-path", dbPath, "status", "-a", app.ID.String(), "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Builders")
	assert.Contains(t, out, "Progress: 0/5 required steps")
	assert.Contains(t, out, "[ ] Step 2")
	assert.Contains(t, out, "[x] 2.1 (r1)")
}
