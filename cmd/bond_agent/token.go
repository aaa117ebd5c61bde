package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/bond-onboarding/internal/config"
	"github.com/jonathan/bond-onboarding/internal/server"
)

var (
	tokenSubject   string
	tokenCompanyID string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long: "Issue a bearer token signed with $JWT_SECRET. Tokens with --company-id can only " +
		"see that company's applications.",
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Operator or service the token is issued to (required)")
	tokenCmd.Flags().StringVar(&tokenCompanyID, "company-id", "", "Restrict the token to one company")
	mustMarkRequired(tokenCmd, "subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	companyID := uuid.Nil
	if tokenCompanyID != "" {
		if companyID, err = uuid.Parse(tokenCompanyID); err != nil {
			return fmt.Errorf("invalid company id: %w", err)
		}
	}

	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenSubject, companyID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
