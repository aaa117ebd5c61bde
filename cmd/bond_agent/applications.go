package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/bond-onboarding/internal/lifecycle"
	"github.com/jonathan/bond-onboarding/internal/observability"
	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/types"
)

var (
	createCompanyID   string
	createCompanyName string

	markApplicationID string
	markStepID        string
	markIncomplete    bool
	markRecordIDs     []string
	markRecompute     bool
	markMetadata      string

	statusApplicationIDs []string
	statusPretty         bool

	submitApplicationID string

	transitionApplicationID string
	transitionEvent         string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new DRAFT application for a company",
	RunE:  runCreate,
}

var markStepCmd = &cobra.Command{
	Use:   "mark-step",
	Short: "Mark a main or sub step complete (or incomplete with --incomplete)",
	Long: "Mark a step of an application. Step ids are either a main step (\"4\") or a sub-step " +
		"(\"4.1\"). Marking a sub-step recomputes its main step from the sub-steps present; " +
		"--recompute additionally re-derives it from the registry's required sub-steps.",
	RunE: runMarkStep,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show completion of the required steps for one or more applications",
	RunE:  runStatus,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an application once every required step is complete",
	RunE:  runSubmit,
}

var transitionCmd = &cobra.Command{
	Use:   "transition",
	Short: "Apply a lifecycle event (mark_ready, calculate, archive)",
	RunE:  runTransition,
}

func init() {
	createCmd.Flags().StringVar(&createCompanyID, "company-id", "", "Company UUID (required)")
	createCmd.Flags().StringVar(&createCompanyName, "company-name", "", "Company name (required)")
	mustMarkRequired(createCmd, "company-id", "company-name")

	markStepCmd.Flags().StringVarP(&markApplicationID, "application", "a", "", "Application UUID (required)")
	markStepCmd.Flags().StringVarP(&markStepID, "step", "s", "", "Step id, e.g. 2 or 2.1 (required)")
	markStepCmd.Flags().BoolVar(&markIncomplete, "incomplete", false, "Mark the step incomplete instead of complete")
	markStepCmd.Flags().StringSliceVar(&markRecordIDs, "record-id", nil, "Record id to attach (repeatable)")
	markStepCmd.Flags().StringVar(&markMetadata, "metadata", "", "JSON object replacing the step's metadata")
	markStepCmd.Flags().BoolVar(&markRecompute, "recompute", false, "Recompute the main step from the registry afterwards")
	mustMarkRequired(markStepCmd, "application", "step")

	statusCmd.Flags().StringSliceVarP(&statusApplicationIDs, "application", "a", nil, "Application UUID (required, repeatable)")
	statusCmd.Flags().BoolVar(&statusPretty, "pretty", false, "Print a step checklist instead of JSON")
	mustMarkRequired(statusCmd, "application")

	submitCmd.Flags().StringVarP(&submitApplicationID, "application", "a", "", "Application UUID (required)")
	mustMarkRequired(submitCmd, "application")

	transitionCmd.Flags().StringVarP(&transitionApplicationID, "application", "a", "", "Application UUID (required)")
	transitionCmd.Flags().StringVarP(&transitionEvent, "event", "e", "", "mark_ready, calculate or archive (required)")
	mustMarkRequired(transitionCmd, "application", "event")

	rootCmd.AddCommand(createCmd, markStepCmd, statusCmd, submitCmd, transitionCmd)
}

func mustMarkRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
}

func parseApplicationID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid application id %q: %w", s, err)
	}
	return id, nil
}

func runCreate(cmd *cobra.Command, _ []string) error {
	svc, _, closeStore, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := svc.CreateApplication(cmd.Context(), &types.CreateApplicationRequest{
		CompanyID:   createCompanyID,
		CompanyName: createCompanyName,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), app)
}

func runMarkStep(cmd *cobra.Command, _ []string) error {
	id, err := parseApplicationID(markApplicationID)
	if err != nil {
		return err
	}
	stepID, err := progress.ParseStepID(markStepID)
	if err != nil {
		return err
	}

	var metadata map[string]any
	if markMetadata != "" {
		if err := json.Unmarshal([]byte(markMetadata), &metadata); err != nil {
			return fmt.Errorf("invalid --metadata: %w", err)
		}
	}

	svc, _, closeStore, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := svc.MarkStep(cmd.Context(), id, progress.MarkCommand{
		StepID:    markStepID,
		Completed: !markIncomplete,
		RecordIDs: markRecordIDs,
		Metadata:  metadata,
	})
	if err != nil {
		return err
	}
	if markRecompute {
		if app, _, err = svc.RecomputeStep(cmd.Context(), id, stepID.Main); err != nil {
			return err
		}
	}

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"application_id": app.ID,
		"status":         app.Status,
		"step_id":        markStepID,
		"main_step":      app.StepProgress[stepID.Main],
	})
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ids := make([]uuid.UUID, 0, len(statusApplicationIDs))
	for _, raw := range statusApplicationIDs {
		id, err := parseApplicationID(raw)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	svc, _, closeStore, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	if statusPretty {
		printer := observability.NewPrinter(cmd.OutOrStdout())
		for _, id := range ids {
			app, err := svc.GetApplication(cmd.Context(), id)
			if err != nil {
				return err
			}
			printer.PrintApplication(app, svc.Registry().RequiredMainSteps())
		}
		return nil
	}

	summaries, err := svc.Summaries(cmd.Context(), ids)
	if err != nil {
		return err
	}
	if len(summaries) == 1 {
		return printJSON(cmd.OutOrStdout(), summaries[0])
	}
	return printJSON(cmd.OutOrStdout(), summaries)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	id, err := parseApplicationID(submitApplicationID)
	if err != nil {
		return err
	}

	svc, _, closeStore, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := svc.Submit(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Application %s submitted at %s\n", app.ID, app.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

func runTransition(cmd *cobra.Command, _ []string) error {
	id, err := parseApplicationID(transitionApplicationID)
	if err != nil {
		return err
	}
	req := types.TransitionRequest{Event: transitionEvent}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid event %q: must be mark_ready, calculate or archive", transitionEvent)
	}
	event, err := lifecycle.ParseEvent(transitionEvent)
	if err != nil {
		return err
	}

	svc, _, closeStore, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := svc.Transition(cmd.Context(), id, event)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Application %s is now %s\n", app.ID, app.Status)
	return nil
}
